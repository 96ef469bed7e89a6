package lcb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// MessageIDCandidate is a thumbnail whose full-size image was never
// downloaded. Its stem is a message ID the user can look up in the chat.
type MessageIDCandidate struct {
	ID          uint64     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	ModTime     time.Time  `json:"mod_time" yaml:"mod_time"`
	CaptureTime *time.Time `json:"capture_time,omitempty" yaml:"capture_time,omitempty"`
	Copied      bool       `json:"copied" yaml:"copied"`
}

// MessageIDCandidates is the candidate set of one room.
type MessageIDCandidates struct {
	Room        string               `json:"room" yaml:"room"`
	DirName     string               `json:"dir_name" yaml:"dir_name"`
	Target      string               `json:"target" yaml:"target"`
	Candidates  []MessageIDCandidate `json:"candidates" yaml:"candidates"`
	Diagnostics []Diagnostic         `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// MessageIDReport is the outcome of approximating message IDs.
type MessageIDReport struct {
	Rooms       []*MessageIDCandidates `json:"rooms" yaml:"rooms"`
	Diagnostics []Diagnostic           `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// FindMessageIDCandidates returns the thumbnails of a messages folder whose
// numeric stem has no sibling in images/ or original_images/, sorted by ID.
func (s *LCBService) FindMessageIDCandidates(msgDir string) ([]MessageIDCandidate, error) {
	settled := make(map[uint64]bool)
	for _, bucket := range []string{ImagesDirName, OriginalImagesDirName} {
		entries, err := s.readOptionalDir(filepath.Join(msgDir, bucket))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if id, ok := ParseMessageName(e.Name, s.explicit).NumericID(); ok && !e.IsDir {
				settled[id] = true
			}
		}
	}

	thumbDir := filepath.Join(msgDir, ThumbnailsDirName)
	thumbs, err := s.readOptionalDir(thumbDir)
	if err != nil {
		return nil, err
	}

	var out []MessageIDCandidate
	for _, e := range thumbs {
		if e.IsDir {
			continue
		}
		id, ok := ParseMessageName(e.Name, s.explicit).NumericID()
		if !ok || settled[id] {
			continue
		}
		c := MessageIDCandidate{ID: id, Name: e.Name, ModTime: e.ModTime}
		path := filepath.Join(thumbDir, e.Name)
		ct, err := s.capture.CaptureTime(path)
		if err != nil {
			s.logger.Debug("no capture time", "path", path, "err", err)
		}
		c.CaptureTime = ct
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ApproximateMessageIDs copies the orphan thumbnails of the selected rooms
// into _MessageIDs/<room folder>/ beside chatsDir. An empty selection means
// every room. Files already present in the target are left as they are.
func (s *LCBService) ApproximateMessageIDs(chatsDir *Path, ids []string) (*MessageIDReport, error) {
	if !chatsDir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", chatsDir.String())
	}

	rooms, diags, err := s.ScanRooms(chatsDir.String())
	if err != nil {
		return nil, err
	}
	report := &MessageIDReport{Diagnostics: diags}

	selected := rooms
	if len(ids) > 0 {
		selected = s.selectRooms(rooms, ids, &report.Diagnostics)
	}

	root := MessageIDsRoot(chatsDir.String())
	for _, room := range selected {
		result, err := s.approximateRoom(chatsDir.String(), root, room)
		if err != nil {
			s.note(&report.Diagnostics, Diagnostic{Kind: DiagIO, Room: room.ID, Path: room.DirName, Detail: err.Error()})
			continue
		}
		report.Rooms = append(report.Rooms, result)
	}
	return report, nil
}

// selectRooms picks the rooms named by ids, reporting malformed and unknown IDs.
func (s *LCBService) selectRooms(rooms []*ChatRoom, ids []string, diags *[]Diagnostic) []*ChatRoom {
	byID := make(map[string][]*ChatRoom, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = append(byID[r.ID], r)
	}

	var out []*ChatRoom
	seen := make(map[string]bool)
	for _, id := range ids {
		if !IsRoomID(id) {
			s.note(diags, Diagnostic{Kind: DiagMalformedID, Room: id, Detail: fmt.Sprintf("%s: %q", ErrMalformedID, id)})
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		matches, ok := byID[id]
		if !ok {
			s.note(diags, Diagnostic{Kind: DiagSkipped, Room: id, Detail: "room not found"})
			continue
		}
		out = append(out, matches...)
	}
	return out
}

func (s *LCBService) approximateRoom(chatsDir, root string, room *ChatRoom) (*MessageIDCandidates, error) {
	msgDir := MessagesDir(chatsDir, room.DirName)
	candidates, err := s.FindMessageIDCandidates(msgDir)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(root, room.DirName)
	result := &MessageIDCandidates{
		Room:       room.ID,
		DirName:    room.DirName,
		Target:     target,
		Candidates: []MessageIDCandidate{},
	}
	if err := s.ensureDir(room.ID, target); err != nil {
		return nil, fmt.Errorf("creating %s: %w", target, err)
	}

	for _, c := range candidates {
		from := filepath.Join(msgDir, ThumbnailsDirName, c.Name)
		to := filepath.Join(target, c.Name)
		err := s.fsmgr.CopyFile(from, to)
		switch {
		case err == nil:
			c.Copied = true
			s.record(&Action{Kind: ActionCopy, Room: room.ID, Source: from, Destination: to})
		case errors.Is(err, fs.ErrExist):
			s.logger.Debug("candidate already present", "path", to)
		default:
			s.note(&result.Diagnostics, Diagnostic{Kind: DiagIO, Room: room.ID, Path: from, Detail: err.Error()})
		}
		result.Candidates = append(result.Candidates, c)
	}

	s.logger.Info("message ids approximated", "room", room.ID, "candidates", len(result.Candidates))
	return result, nil
}

// readOptionalDir lists dir, treating a missing directory as empty.
func (s *LCBService) readOptionalDir(dir string) ([]DirEntry, error) {
	exists, err := s.fsmgr.Exists(dir)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", dir, err)
	}
	if !exists {
		return nil, nil
	}
	entries, err := s.fsmgr.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	return entries, nil
}
