// Package media reads metadata embedded in chat media files.
package media

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"lcb-go/internal/lcb"
)

// EXIFCaptureTimer reads the capture time recorded in a file's EXIF block.
type EXIFCaptureTimer struct {
	clock lcb.Clock
}

var _ lcb.CaptureTimer = (*EXIFCaptureTimer)(nil)

func NewEXIFCaptureTimer(clock lcb.Clock) *EXIFCaptureTimer {
	return &EXIFCaptureTimer{clock: clock}
}

// CaptureTime returns the DateTimeOriginal (or DateTime) of the file at
// path. Files without EXIF, and timestamps outside 1901 up to next year,
// yield nil without an error; only an unreadable file is an error.
func (c *EXIFCaptureTimer) CaptureTime(path string) (*time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, nil
	}
	dt, err := x.DateTime()
	if err != nil {
		return nil, nil
	}

	if year := dt.Year(); year <= 1900 || year > c.clock.Now().Year()+1 {
		return nil, nil
	}
	return &dt, nil
}
