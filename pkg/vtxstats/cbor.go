package vtxstats

import "github.com/fxamacker/cbor/v2"

// MarshalCBOR encodes a point-in-time snapshot of s as CBOR, for debug
// export (e.g. dumping live stats to a diagnostics socket or file). This is
// a developer convenience, never the packet wire format.
func (s *Stats) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.Snapshot())
}

// UnmarshalSnapshotCBOR decodes a CBOR-encoded Snapshot previously produced
// by MarshalCBOR.
func UnmarshalSnapshotCBOR(data []byte) (Snapshot, error) {
	var snap Snapshot
	err := cbor.Unmarshal(data, &snap)
	return snap, err
}
