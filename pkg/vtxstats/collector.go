package vtxstats

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a Stats as prometheus metrics, built the way
// runZeroInc-sockstats's pkg/exporter.TCPInfoCollector wraps a live counter
// source in a Describe/Collect pair: a fixed list of descriptors paired
// with a supplier reading straight from the atomic counters, so Collect
// never takes a lock shared with the hot path.
type Collector struct {
	stats  *Stats
	role   string // "tx" or "rx", becomes a constant label
	descs  []*prometheus.Desc
}

var metricNames = []string{
	"total_frames", "total_i_frames", "total_p_frames",
	"total_packets", "total_bytes", "retrans_packets",
	"lost_packets", "dup_packets", "incomplete_frames", "dropped_fragments",
}

// NewCollector builds a Collector over stats, labeling every exposed metric
// with role (e.g. "tx" or "rx").
func NewCollector(stats *Stats, role string) *Collector {
	c := &Collector{stats: stats, role: role}
	for _, name := range metricNames {
		c.descs = append(c.descs, prometheus.NewDesc(
			"vtx_"+name,
			"VTX transport counter: "+name,
			nil,
			prometheus.Labels{"role": role},
		))
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	values := []uint64{
		snap.TotalFrames, snap.TotalIFrames, snap.TotalPFrames,
		snap.TotalPackets, snap.TotalBytes, snap.RetransPackets,
		snap.LostPackets, snap.DupPackets, snap.IncompleteFrames, snap.DroppedFragments,
	}
	for i, v := range values {
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.CounterValue, float64(v))
	}
}
