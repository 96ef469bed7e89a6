package testutil

import (
	"path/filepath"
	"time"
)

// StubCaptureTimer returns capture times from a fixed map keyed by path.
type StubCaptureTimer struct {
	Times map[string]time.Time
}

func NewStubCaptureTimer() *StubCaptureTimer {
	return &StubCaptureTimer{Times: make(map[string]time.Time)}
}

func (c *StubCaptureTimer) CaptureTime(path string) (*time.Time, error) {
	t, ok := c.Times[filepath.Clean(path)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}
