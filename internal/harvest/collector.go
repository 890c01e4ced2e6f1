package harvest

import (
	"slices"
	"sync"
)

type indexedRecord struct {
	index  int
	record RawRecord
}

// Collector is the single owner of the records extracted during a run. It
// is safe for concurrent use and hands records back in discovery order.
type Collector struct {
	mu      sync.Mutex
	records []indexedRecord
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add stores a record under its discovery index.
func (c *Collector) Add(index int, record RawRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, indexedRecord{index: index, record: record})
}

// Len returns the number of collected records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Records returns a copy of the collected records sorted by discovery
// index, independent of completion order.
func (c *Collector) Records() []RawRecord {
	c.mu.Lock()
	snapshot := slices.Clone(c.records)
	c.mu.Unlock()

	slices.SortStableFunc(snapshot, func(a, b indexedRecord) int {
		return a.index - b.index
	})
	out := make([]RawRecord, 0, len(snapshot))
	for _, r := range snapshot {
		out = append(out, r.record)
	}
	return out
}
