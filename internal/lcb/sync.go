package lcb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// SyncOptions tune a synchronization run.
type SyncOptions struct {
	// SinceLastSync skips source files that are not newer than the newest
	// numbered file already present in the destination room.
	SinceLastSync bool
	// DryRun computes the deltas without copying anything.
	DryRun bool
}

// SyncDelta is the set of source entries a destination room is missing.
type SyncDelta struct {
	Room        string       `json:"room" yaml:"room"`
	DirName     string       `json:"dir_name" yaml:"dir_name"`
	Missing     []string     `json:"missing" yaml:"missing"`
	Copied      int          `json:"copied" yaml:"copied"`
	Cutoff      *time.Time   `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SyncReport is the outcome of synchronizing two chats directories.
type SyncReport struct {
	Rooms       []*SyncDelta `json:"rooms" yaml:"rooms"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// EntryKey identifies a message entry across a source and a destination tree.
type EntryKey struct {
	Name string
	Role Role
}

// SourceKey is the key of an entry read from a source messages folder.
// Source names are taken as they are.
func SourceKey(name string, explicit ExtensionSet) EntryKey {
	return EntryKey{Name: name, Role: ParseMessageName(name, explicit).Role}
}

// DestinationKey is the key of an entry of a destination room; inBucket
// marks entries of images/, thumbnails/ and original_images/. The format tag
// appended by classification is removed only where classification would
// have put the untagged name, so that 8552 in the source matches
// images/8552.jpg while messages/8553.mp4 keeps its own key.
func DestinationKey(name string, inBucket bool, explicit ExtensionSet) EntryKey {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || !IsKnownFormat(strings.ToLower(name[i+1:])) {
		return SourceKey(name, explicit)
	}
	base := ParseMessageName(name[:i], explicit)
	if base.Role == RoleTyped {
		return SourceKey(name, explicit)
	}
	settled := bucketFor(base.Role) != "" && !base.Pending
	if settled != inBucket {
		return SourceKey(name, explicit)
	}
	return EntryKey{Name: base.Name, Role: base.Role}
}

// Sync copies every entry of the source rooms' messages folders that the
// matching destination room lacks into the destination messages folder.
// Rooms are matched by ID. Nothing is ever deleted or overwritten.
func (s *LCBService) Sync(dst, src *Path, opts SyncOptions) (*SyncReport, error) {
	for _, p := range []*Path{dst, src} {
		if !p.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", p.String())
		}
	}

	dstRooms, dstDiags, err := s.ScanRooms(dst.String())
	if err != nil {
		return nil, err
	}
	srcRooms, srcDiags, err := s.ScanRooms(src.String())
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	report.Diagnostics = append(report.Diagnostics, dstDiags...)
	report.Diagnostics = append(report.Diagnostics, srcDiags...)

	srcByID := make(map[string]*ChatRoom, len(srcRooms))
	for _, r := range srcRooms {
		srcByID[r.ID] = r
	}

	matched := make(map[string]bool)
	for _, dr := range dstRooms {
		sr, ok := srcByID[dr.ID]
		if !ok {
			s.logger.Debug("no source room", "room", dr.ID)
			continue
		}
		if matched[dr.ID] {
			s.note(&report.Diagnostics, Diagnostic{
				Kind:   DiagSkipped,
				Room:   dr.ID,
				Path:   filepath.Join(dst.String(), dr.DirName),
				Detail: "room id appears in more than one destination folder",
			})
			continue
		}
		matched[dr.ID] = true

		delta, err := s.syncRoom(
			dr,
			MessagesDir(dst.String(), dr.DirName),
			MessagesDir(src.String(), sr.DirName),
			opts,
		)
		if err != nil {
			s.note(&report.Diagnostics, Diagnostic{Kind: DiagIO, Room: dr.ID, Path: dr.DirName, Detail: err.Error()})
			continue
		}
		report.Rooms = append(report.Rooms, delta)
	}

	for _, sr := range srcRooms {
		if matched[sr.ID] {
			continue
		}
		s.note(&report.Diagnostics, Diagnostic{
			Kind:   DiagSkipped,
			Room:   sr.ID,
			Path:   filepath.Join(src.String(), sr.DirName),
			Detail: "room has no destination folder",
		})
	}

	s.logger.Info("sync complete", "rooms", len(report.Rooms))
	return report, nil
}

// syncRoom computes and, unless opts.DryRun, applies the delta of one room pair.
func (s *LCBService) syncRoom(room *ChatRoom, dstMsgDir, srcMsgDir string, opts SyncOptions) (*SyncDelta, error) {
	delta := &SyncDelta{Room: room.ID, DirName: room.DirName, Missing: []string{}}

	srcEntries, err := s.fsmgr.ReadDir(srcMsgDir)
	if err != nil {
		return nil, fmt.Errorf("reading source messages: %w", err)
	}

	keys, cutoff, err := s.destinationKeys(dstMsgDir)
	if err != nil {
		return nil, err
	}
	if opts.SinceLastSync && !cutoff.IsZero() {
		delta.Cutoff = &cutoff
	}

	for _, e := range srcEntries {
		if e.IsDir {
			continue
		}
		if delta.Cutoff != nil && !e.ModTime.After(cutoff) {
			continue
		}
		if keys[SourceKey(e.Name, s.explicit)] {
			continue
		}
		delta.Missing = append(delta.Missing, e.Name)
	}

	if opts.DryRun || len(delta.Missing) == 0 {
		return delta, nil
	}

	if err := s.ensureDir(room.ID, dstMsgDir); err != nil {
		return nil, fmt.Errorf("creating destination messages: %w", err)
	}

	for _, name := range delta.Missing {
		from := filepath.Join(srcMsgDir, name)
		to := filepath.Join(dstMsgDir, name)
		if err := s.fsmgr.CopyFile(from, to); err != nil {
			kind := DiagIO
			if errors.Is(err, fs.ErrExist) {
				kind = DiagConflict
			}
			s.note(&delta.Diagnostics, Diagnostic{Kind: kind, Room: room.ID, Path: from, Detail: err.Error()})
			continue
		}
		s.record(&Action{Kind: ActionCopy, Room: room.ID, Source: from, Destination: to})
		delta.Copied++
	}

	s.logger.Info("room synced", "room", room.ID, "missing", len(delta.Missing), "copied", delta.Copied)
	return delta, nil
}

// destinationKeys collects the entry keys of a destination room's messages
// folder and its buckets. It also returns the newest modification time of a
// numbered file in the messages folder or thumbnails/, which marks the last
// time the room was synchronized. A missing messages folder yields no keys.
func (s *LCBService) destinationKeys(msgDir string) (map[EntryKey]bool, time.Time, error) {
	keys := make(map[EntryKey]bool)
	var cutoff time.Time

	dirs := append([]string{msgDir}, bucketPaths(msgDir)...)
	for _, dir := range dirs {
		entries, err := s.readOptionalDir(dir)
		if err != nil {
			return nil, cutoff, err
		}
		inBucket := dir != msgDir
		countsForCutoff := !inBucket || filepath.Base(dir) == ThumbnailsDirName
		for _, e := range entries {
			if e.IsDir {
				continue
			}
			keys[DestinationKey(e.Name, inBucket, s.explicit)] = true
			if !countsForCutoff {
				continue
			}
			if _, ok := ParseMessageName(e.Name, s.explicit).NumericID(); ok && e.ModTime.After(cutoff) {
				cutoff = e.ModTime
			}
		}
	}
	return keys, cutoff, nil
}

func bucketPaths(msgDir string) []string {
	out := make([]string, len(BucketDirNames))
	for i, b := range BucketDirNames {
		out[i] = filepath.Join(msgDir, b)
	}
	return out
}
