package metrics

// Collector captures counters, gauges and histograms.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
}

// Names reported by the store.
const (
	FlushesTotal     = "lsm_flushes_total"
	CompactionsTotal = "lsm_compactions_total"
	FlushSeconds     = "lsm_flush_seconds"
	CompactSeconds   = "lsm_compaction_seconds"
	Segments         = "lsm_segments"
	DiskBytes        = "lsm_disk_bytes"
)

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, map[string]string, float64)       {}
func (Nop) SetGauge(string, map[string]string, float64)         {}
func (Nop) ObserveHistogram(string, map[string]string, float64) {}
