// Package fragment implements frame fragmentation/reassembly arithmetic, the
// receiver-side completion bitmap, and the sender-side fragment-descriptor
// slab used for per-fragment ARQ on key frames. Grounded on the split-packet
// handling in the teacher's Session.HandleDataPacket
// (source/protocol/raknet.go) and on original_source/src/vtx_frame.c.
package fragment

import "vtxgo/pkg/vtxerr"

// Count returns ceil(size / (mtu-headerSize)), the number of fragments a
// frame of size bytes splits into under the given MTU and header size.
func Count(size, mtu, headerSize int) (int, error) {
	maxPayload := mtu - headerSize
	if maxPayload <= 0 {
		return 0, vtxerr.New(vtxerr.InvalidParam, "fragment.Count")
	}
	if size <= 0 {
		return 0, vtxerr.New(vtxerr.InvalidParam, "fragment.Count")
	}
	return (size + maxPayload - 1) / maxPayload, nil
}

// Range returns the half-open byte range [start, end) of fragment index i
// within a frame of the given total size, using maxPayload bytes per
// fragment (mtu-headerSize).
func Range(index, maxPayload, totalSize int) (start, end int) {
	start = index * maxPayload
	end = start + maxPayload
	if end > totalSize {
		end = totalSize
	}
	return start, end
}
