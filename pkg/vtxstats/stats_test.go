package vtxstats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSnapshotDerivedRates(t *testing.T) {
	var s Stats
	for i := 0; i < 10; i++ {
		s.IncPacket(100)
	}
	s.IncRetrans()
	s.IncRetrans()
	s.IncLost(1)

	snap := s.Snapshot()
	if snap.TotalPackets != 10 || snap.TotalBytes != 1000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.RetransRate != 0.2 {
		t.Errorf("RetransRate = %v, want 0.2", snap.RetransRate)
	}
}

func TestCBORRoundTrip(t *testing.T) {
	var s Stats
	s.IncFrame(true, false)
	s.IncPacket(42)

	data, err := s.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	snap, err := UnmarshalSnapshotCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshotCBOR: %v", err)
	}
	if snap.TotalFrames != 1 || snap.TotalIFrames != 1 || snap.TotalBytes != 42 {
		t.Fatalf("round trip mismatch: %+v", snap)
	}
}

func TestCollectorDescribeCollect(t *testing.T) {
	var s Stats
	s.IncPacket(10)
	c := NewCollector(&s, "tx")

	if len(c.descs) != len(metricNames) {
		t.Fatalf("got %d descs, want %d", len(c.descs), len(metricNames))
	}

	descCh := make(chan *prometheus.Desc, len(metricNames))
	c.Describe(descCh)
	close(descCh)
	if len(descCh) != len(metricNames) {
		t.Fatalf("Describe sent %d descs, want %d", len(descCh), len(metricNames))
	}

	metricCh := make(chan prometheus.Metric, len(metricNames))
	c.Collect(metricCh)
	close(metricCh)
	if len(metricCh) != len(metricNames) {
		t.Fatalf("Collect sent %d metrics, want %d", len(metricCh), len(metricNames))
	}
}
