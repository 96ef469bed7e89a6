package lcb

import "time"

// CaptureTimer looks up when a media file was originally captured.
// It returns nil when the file carries no capture time.
type CaptureTimer interface {
	CaptureTime(path string) (*time.Time, error)
}

// NopCaptureTimer never finds a capture time.
type NopCaptureTimer struct{}

func (NopCaptureTimer) CaptureTime(string) (*time.Time, error) { return nil, nil }

// LCBService is the orchestration layer behind the CLI. It classifies,
// matches, synchronizes and inspects chat backup trees through the injected
// filesystem and journals every change it makes.
type LCBService struct {
	fsmgr    FilesystemManager
	database Database
	journal  Journal
	capture  CaptureTimer
	logger   Logger
	clock    Clock
	explicit ExtensionSet
}

// NewLCBService creates a new LCBService with the provided dependencies.
// database may be nil for commands that never read history; a nil journal
// or capture timer falls back to the no-op implementations.
// explicitExtensions are file extensions that, besides the sniffable
// formats, mark a message file as already typed.
func NewLCBService(fsmgr FilesystemManager, database Database, journal Journal, capture CaptureTimer, logger Logger, clock Clock, explicitExtensions []string) *LCBService {
	if journal == nil {
		journal = NopJournal{}
	}
	if capture == nil {
		capture = NopCaptureTimer{}
	}
	return &LCBService{
		fsmgr:    fsmgr,
		database: database,
		journal:  journal,
		capture:  capture,
		logger:   logger,
		clock:    clock,
		explicit: NewExtensionSet(explicitExtensions),
	}
}

// SetJournal replaces the journal actions are recorded in.
// The app calls it once an operation has been persisted.
func (s *LCBService) SetJournal(j Journal) {
	if j == nil {
		j = NopJournal{}
	}
	s.journal = j
}
