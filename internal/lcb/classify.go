package lcb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Role is a message file's structural kind, derived from its name alone.
type Role int

const (
	RoleUnknown Role = iota
	RolePrimary
	RoleThumbnail
	RoleOriginal
	RoleTemp
	// RoleTyped marks names whose format is already explicit; they are never touched.
	RoleTyped
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleThumbnail:
		return "thumbnail"
	case RoleOriginal:
		return "original"
	case RoleTemp:
		return "temp"
	case RoleTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// Name suffixes written by the chat application.
const (
	thumbSuffix    = ".thumb"
	originalSuffix = ".original"
	tmpSuffix      = ".tmp"
	voicePrefix    = "voice_"
)

// ExtensionSet holds lower-case extensions (without the dot) that make a
// file name explicit: the sniffable formats plus configured extras.
type ExtensionSet map[string]bool

// NewExtensionSet returns the known formats plus extra.
func NewExtensionSet(extra []string) ExtensionSet {
	set := make(ExtensionSet, len(KnownFormats)+len(extra))
	for _, f := range KnownFormats {
		set[string(f)] = true
	}
	for _, e := range extra {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = true
		}
	}
	return set
}

// Has reports whether name ends in one of the set's extensions.
func (s ExtensionSet) Has(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return false
	}
	return s[strings.ToLower(name[i+1:])]
}

// nameRule maps a name predicate to a role. pending marks names the
// producer may still be writing; those are never moved into a bucket.
type nameRule struct {
	role    Role
	pending bool
	match   func(name string, explicit ExtensionSet) bool
}

// nameRules are evaluated top to bottom; the first match wins.
// A name matching none of them has RoleUnknown.
var nameRules = []nameRule{
	{RoleTyped, false, func(n string, ex ExtensionSet) bool {
		return strings.HasPrefix(n, voicePrefix) || ex.Has(n)
	}},
	{RoleThumbnail, true, hasSuffix(thumbSuffix + tmpSuffix)},
	{RoleThumbnail, false, hasSuffix(thumbSuffix)},
	{RoleOriginal, false, hasSuffix(originalSuffix)},
	{RoleTemp, true, hasSuffix(tmpSuffix)},
	{RolePrimary, false, func(n string, _ ExtensionSet) bool { return isDigits(n) }},
}

func hasSuffix(suffix string) func(string, ExtensionSet) bool {
	return func(n string, _ ExtensionSet) bool {
		return len(n) > len(suffix) && strings.HasSuffix(n, suffix)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var stemPattern = regexp.MustCompile(`^(?:voice_)?[0-9]+`)

// MessageName is what a message file's name says about it.
type MessageName struct {
	Name    string
	Stem    string // leading numeric or voice_<id> token, empty if absent
	Role    Role
	Pending bool
}

// ParseMessageName derives the stem and role of a message file name.
func ParseMessageName(name string, explicit ExtensionSet) MessageName {
	mn := MessageName{Name: name, Stem: stemPattern.FindString(name), Role: RoleUnknown}
	for _, rule := range nameRules {
		if rule.match(name, explicit) {
			mn.Role = rule.role
			mn.Pending = rule.pending
			break
		}
	}
	return mn
}

// NumericID returns the stem as a number. Voice stems are not message IDs
// in the numeric sequence and report false.
func (m MessageName) NumericID() (uint64, bool) {
	if m.Stem == "" || strings.HasPrefix(m.Stem, voicePrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(m.Stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// bucketFor returns the bucket folder a settled file of the given role goes to.
func bucketFor(role Role) string {
	switch role {
	case RolePrimary:
		return ImagesDirName
	case RoleThumbnail:
		return ThumbnailsDirName
	case RoleOriginal:
		return OriginalImagesDirName
	default:
		return ""
	}
}

// PlannedMove is one rename of a classification plan.
type PlannedMove struct {
	Source      string    `json:"source" yaml:"source"`
	Destination string    `json:"destination" yaml:"destination"`
	Role        string    `json:"role" yaml:"role"`
	Format      FormatTag `json:"format" yaml:"format"`
}

// ClassificationPlan lists the renames for one room plus the files that stay as they are.
type ClassificationPlan struct {
	MessagesDir string        `json:"messages_dir" yaml:"messages_dir"`
	Moves       []PlannedMove `json:"moves" yaml:"moves"`
	Unresolved  []string      `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// RoomClassification is the outcome of classifying one room.
type RoomClassification struct {
	Room        string       `json:"room" yaml:"room"`
	DirName     string       `json:"dir_name" yaml:"dir_name"`
	Moved       int          `json:"moved" yaml:"moved"`
	Unresolved  []string     `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// ClassifyReport is the outcome of classifying a chats directory.
type ClassifyReport struct {
	Rooms       []*RoomClassification `json:"rooms" yaml:"rooms"`
	Diagnostics []Diagnostic          `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// PlanRoom computes the classification plan for a room's messages folder.
// Only direct entries are considered; subfolders (the buckets included) are
// already classified and skipped.
func (s *LCBService) PlanRoom(room *ChatRoom, msgDir string) (*ClassificationPlan, error) {
	entries, err := s.fsmgr.ReadDir(msgDir)
	if err != nil {
		return nil, fmt.Errorf("reading messages directory: %w", err)
	}

	plan := &ClassificationPlan{MessagesDir: msgDir}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		mn := ParseMessageName(e.Name, s.explicit)
		if mn.Role == RoleTyped {
			continue
		}

		src := filepath.Join(msgDir, e.Name)
		tag, err := s.SniffFile(src)
		if err != nil {
			plan.Unresolved = append(plan.Unresolved, src)
			s.note(&plan.Diagnostics, Diagnostic{Kind: DiagIO, Room: room.ID, Path: src, Detail: err.Error()})
			continue
		}
		if tag == FormatUnknown {
			plan.Unresolved = append(plan.Unresolved, src)
			s.note(&plan.Diagnostics, Diagnostic{
				Kind:   DiagUndecidable,
				Room:   room.ID,
				Path:   src,
				Detail: ErrUnknownFormat.Error(),
			})
			continue
		}

		destDir := msgDir
		if bucket := bucketFor(mn.Role); bucket != "" && !mn.Pending {
			destDir = filepath.Join(msgDir, bucket)
		}
		plan.Moves = append(plan.Moves, PlannedMove{
			Source:      src,
			Destination: filepath.Join(destDir, e.Name+"."+string(tag)),
			Role:        mn.Role.String(),
			Format:      tag,
		})
	}
	return plan, nil
}

// ApplyPlan creates the bucket folders and performs the plan's renames.
// A rename whose target exists is skipped and reported; one failing entry
// does not stop the others.
func (s *LCBService) ApplyPlan(room *ChatRoom, plan *ClassificationPlan) *RoomClassification {
	result := &RoomClassification{
		Room:        room.ID,
		DirName:     room.DirName,
		Unresolved:  plan.Unresolved,
		Diagnostics: plan.Diagnostics,
	}

	for _, bucket := range BucketDirNames {
		dir := filepath.Join(plan.MessagesDir, bucket)
		if err := s.ensureDir(room.ID, dir); err != nil {
			s.note(&result.Diagnostics, Diagnostic{Kind: DiagIO, Room: room.ID, Path: dir, Detail: err.Error()})
		}
	}

	for _, mv := range plan.Moves {
		if err := s.fsmgr.Rename(mv.Source, mv.Destination); err != nil {
			kind := DiagIO
			if errors.Is(err, fs.ErrExist) {
				kind = DiagConflict
			}
			result.Unresolved = append(result.Unresolved, mv.Source)
			s.note(&result.Diagnostics, Diagnostic{Kind: kind, Room: room.ID, Path: mv.Source, Detail: err.Error()})
			continue
		}

		kind := ActionMove
		if filepath.Dir(mv.Source) == filepath.Dir(mv.Destination) {
			kind = ActionRename
		}
		s.record(&Action{Kind: kind, Room: room.ID, Source: mv.Source, Destination: mv.Destination})
		s.logger.Debug("file classified", "src", mv.Source, "dst", mv.Destination, "format", string(mv.Format))
		result.Moved++
	}
	return result
}

// ClassifyRoom plans and applies classification for one room.
func (s *LCBService) ClassifyRoom(chatsDir string, room *ChatRoom) (*RoomClassification, error) {
	msgDir := MessagesDir(chatsDir, room.DirName)
	plan, err := s.PlanRoom(room, msgDir)
	if err != nil {
		return nil, err
	}
	return s.ApplyPlan(room, plan), nil
}

// Classify classifies every room of a chats directory.
// A room that cannot be processed is reported and the run continues.
func (s *LCBService) Classify(chatsDir *Path) (*ClassifyReport, error) {
	if !chatsDir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", chatsDir.String())
	}

	rooms, diags, err := s.ScanRooms(chatsDir.String())
	if err != nil {
		return nil, err
	}

	report := &ClassifyReport{Diagnostics: diags}
	for _, room := range rooms {
		result, err := s.ClassifyRoom(chatsDir.String(), room)
		if err != nil {
			s.note(&report.Diagnostics, Diagnostic{Kind: DiagIO, Room: room.ID, Path: room.DirName, Detail: err.Error()})
			continue
		}
		report.Rooms = append(report.Rooms, result)
	}

	s.logger.Info("classification complete", "rooms", len(report.Rooms))
	return report, nil
}

// ensureDir creates dir when missing and journals the creation.
func (s *LCBService) ensureDir(roomID, dir string) error {
	exists, err := s.fsmgr.Exists(dir)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.fsmgr.MkdirAll(dir); err != nil {
		return err
	}
	s.record(&Action{Kind: ActionMkdir, Room: roomID, Destination: dir})
	return nil
}
