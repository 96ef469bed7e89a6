package report

import (
	"fmt"
	"io"
	"time"

	"lcb-go/internal/lcb"
)

const timeLayout = "2006-01-02 15:04:05"

// printer remembers the first write error so renderers can print freely.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func renderText(w io.Writer, v any) error {
	p := &printer{w: w}
	switch r := v.(type) {
	case *lcb.ExtractReport:
		p.extract(r)
	case *lcb.PrefixReport:
		p.prefix(r)
	case *lcb.ClassifyReport:
		p.classify(r)
	case *lcb.CompareReport:
		p.compare(r)
	case *lcb.SyncReport:
		p.sync(r)
	case *lcb.MessageIDReport:
		p.messageIDs(r)
	case *lcb.PipelineReport:
		p.pipeline(r)
	case []*lcb.Operation:
		p.operations(r)
	case *lcb.OperationDetail:
		p.operationDetail(r)
	default:
		return fmt.Errorf("no text rendering for %T", v)
	}
	return p.err
}

func (p *printer) diagnostics(ds []lcb.Diagnostic) {
	for _, d := range ds {
		where := d.Path
		if where == "" {
			where = d.Room
		}
		if where != "" {
			p.printf("warning: %s: %s: %s\n", d.Kind, where, d.Detail)
		} else {
			p.printf("warning: %s: %s\n", d.Kind, d.Detail)
		}
	}
}

func (p *printer) extract(r *lcb.ExtractReport) {
	for _, id := range r.Added {
		p.printf("+ %s\n", id)
	}
	for _, id := range r.Updated {
		p.printf("~ %s\n", id)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d added, %d updated, %d unchanged\n", len(r.Added), len(r.Updated), r.Unchanged)
}

func (p *printer) prefix(r *lcb.PrefixReport) {
	for _, rn := range r.Renamed {
		p.printf("%s -> %s\n", rn.From, rn.To)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d room(s) renamed\n", len(r.Renamed))
}

func (p *printer) classify(r *lcb.ClassifyReport) {
	moved, unresolved := 0, 0
	for _, room := range r.Rooms {
		moved += room.Moved
		unresolved += len(room.Unresolved)
		if room.Moved == 0 && len(room.Unresolved) == 0 && len(room.Diagnostics) == 0 {
			continue
		}
		p.printf("%s: moved %d\n", room.DirName, room.Moved)
		for _, name := range room.Unresolved {
			p.printf("  unresolved %s\n", name)
		}
		p.diagnostics(room.Diagnostics)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d room(s), %d file(s) moved, %d unresolved\n", len(r.Rooms), moved, unresolved)
}

func (p *printer) compare(r *lcb.CompareReport) {
	for _, ref := range r.NewRooms {
		p.printf("%s  %s\n", ref.ID, ref.DirName)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d new room(s)\n", len(r.NewRooms))
}

func (p *printer) sync(r *lcb.SyncReport) {
	missing, copied := 0, 0
	for _, d := range r.Rooms {
		missing += len(d.Missing)
		copied += d.Copied
		if len(d.Missing) == 0 && len(d.Diagnostics) == 0 {
			continue
		}
		p.printf("%s: %d missing, %d copied", d.DirName, len(d.Missing), d.Copied)
		if d.Cutoff != nil {
			p.printf(" (newer than %s)", d.Cutoff.Format(timeLayout))
		}
		p.printf("\n")
		p.diagnostics(d.Diagnostics)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d room(s), %d missing, %d copied\n", len(r.Rooms), missing, copied)
}

func (p *printer) messageIDs(r *lcb.MessageIDReport) {
	total := 0
	for _, room := range r.Rooms {
		total += len(room.Candidates)
		if len(room.Candidates) == 0 && len(room.Diagnostics) == 0 {
			continue
		}
		p.printf("%s -> %s\n", room.DirName, room.Target)
		for _, c := range room.Candidates {
			p.printf("  %d  %s  %s", c.ID, c.Name, c.ModTime.Format(timeLayout))
			if c.CaptureTime != nil {
				p.printf("  captured %s", c.CaptureTime.Format(timeLayout))
			}
			p.printf("\n")
		}
		p.diagnostics(room.Diagnostics)
	}
	p.diagnostics(r.Diagnostics)
	p.printf("%d candidate(s) in %d room(s)\n", total, len(r.Rooms))
}

func (p *printer) pipeline(r *lcb.PipelineReport) {
	section := func(name string) { p.printf("== %s ==\n", name) }
	if r.Prefix != nil {
		section("prefix")
		p.prefix(r.Prefix)
	}
	if r.Sync != nil {
		section("sync")
		p.sync(r.Sync)
	}
	if r.Classify != nil {
		section("classify")
		p.classify(r.Classify)
	}
	if r.Compare != nil {
		section("compare")
		p.compare(r.Compare)
	}
	if r.MessageIDs != nil {
		section("message ids")
		p.messageIDs(r.MessageIDs)
	}
	p.printf("finished in %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

func (p *printer) operations(ops []*lcb.Operation) {
	if len(ops) == 0 {
		p.printf("No operations recorded.\n")
		return
	}
	for _, op := range ops {
		p.printf("#%d  %-15s  %s  %-10s  %s\n",
			op.ID, op.Operation, op.StartedAt.Local().Format(timeLayout), op.Status, op.Parameters)
	}
}

func (p *printer) operationDetail(d *lcb.OperationDetail) {
	p.operations([]*lcb.Operation{d.Operation})
	if d.Operation.FinishedAt != nil {
		p.printf("finished %s\n", d.Operation.FinishedAt.Local().Format(timeLayout))
	}
	for _, a := range d.Actions {
		switch {
		case a.Source != "" && a.Destination != "":
			p.printf("  %-6s  %s -> %s\n", a.Kind, a.Source, a.Destination)
		case a.Destination != "":
			p.printf("  %-6s  %s\n", a.Kind, a.Destination)
		default:
			p.printf("  %-6s  %s\n", a.Kind, a.Source)
		}
	}
	p.printf("%d action(s)\n", len(d.Actions))
}
