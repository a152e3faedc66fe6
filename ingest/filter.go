package ingest

import (
	"time"
)

// StalenessFilter rejects records at or before a high-water-mark timestamp.
// The upstream stream redelivers its full retention window on every fresh
// connection, so the watermark screens out history already persisted before
// this process started.
//
// The watermark is established exactly once, from the most recent stored
// reading at startup, and never advances during the session. A reconnect
// mid-session therefore replays records processed since startup; the
// historical store's idempotent upload absorbs the duplicate writes.
type StalenessFilter struct {
	watermark time.Time
}

// NewStalenessFilter creates a filter with the given startup watermark.
// Pass timestamp.Epoch when the historical store is empty.
func NewStalenessFilter(watermark time.Time) *StalenessFilter {
	return &StalenessFilter{watermark: watermark}
}

// Stale reports whether a record timestamp is at or before the watermark
func (f *StalenessFilter) Stale(t time.Time) bool {
	return !t.After(f.watermark)
}

// Watermark returns the filter's cutoff timestamp
func (f *StalenessFilter) Watermark() time.Time {
	return f.watermark
}
