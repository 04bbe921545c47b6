// Package runlog keeps a bounded in-memory history of recent run outcomes
// for the diagnostics endpoints. Outcomes only — no message content is
// retained.
package runlog

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Record is the outcome of one run.
type Record struct {
	ID         int64     `json:"id"`
	At         time.Time `json:"at"`
	Trigger    string    `json:"trigger"` // "cron", "command", "manual"
	Date       string    `json:"date"`
	Count      int       `json:"messages_found"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// History is a thread-safe LRU of recent run records.
type History struct {
	cache  *lru.Cache[int64, Record]
	nextID atomic.Int64
}

// NewHistory creates a history bounded to maxItems records.
func NewHistory(maxItems int) (*History, error) {
	c, err := lru.New[int64, Record](maxItems)
	if err != nil {
		return nil, err
	}
	return &History{cache: c}, nil
}

// Add records one outcome and returns its assigned ID.
func (h *History) Add(rec Record) int64 {
	id := h.nextID.Add(1)
	rec.ID = id
	h.cache.Add(id, rec)
	return id
}

// Recent returns up to n records, most recent first.
func (h *History) Recent(n int) []Record {
	keys := h.cache.Keys() // oldest to newest
	records := make([]Record, 0, n)
	for i := len(keys) - 1; i >= 0 && len(records) < n; i-- {
		if rec, ok := h.cache.Peek(keys[i]); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Len returns the number of retained records.
func (h *History) Len() int {
	return h.cache.Len()
}
