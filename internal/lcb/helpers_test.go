package lcb_test

import (
	"errors"
	"testing"

	"lcb-go/internal/lcb"
	"lcb-go/internal/testutil"
)

// Leading bytes of real files of each format.
var (
	jpegHead = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHead  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	gifHead  = []byte("GIF89a\x01\x00\x01\x00")
	mp4Head  = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}
	pdfHead  = []byte("%PDF-1.7\n")
	zipHead  = []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00}
	textHead = []byte("just some text")
)

const (
	roomA = "c7acf23b06ad3e4c029dc5ef6d6e88444"
	roomB = "u111f36cae69bfd641933b23eee717b54"
	roomC = "r0123456789abcdef0123456789abcdef"
)

func newTestService(t *testing.T, fsmgr *testutil.MockFilesystemManager) *lcb.LCBService {
	t.Helper()
	return lcb.NewLCBService(fsmgr, nil, nil, nil, lcb.NewNopLogger(), testutil.FixedClock(), []string{"aac", "m4a"})
}

func mustResolve(t *testing.T, fsmgr *testutil.MockFilesystemManager, path string) *lcb.Path {
	t.Helper()
	p, err := fsmgr.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", path, err)
	}
	return p
}

// recordingJournal keeps every recorded action in memory.
type recordingJournal struct {
	actions []lcb.Action
}

func (j *recordingJournal) RecordAction(a *lcb.Action) error {
	j.actions = append(j.actions, *a)
	return nil
}

func diagKinds(ds []lcb.Diagnostic) []lcb.DiagnosticKind {
	out := make([]lcb.DiagnosticKind, len(ds))
	for i, d := range ds {
		out[i] = d.Kind
	}
	return out
}

var errTest = errors.New("test error")
