package lcb

import (
	"fmt"
	"time"
)

// PipelineOptions select the steps of a full run. Classification always runs.
type PipelineOptions struct {
	Mapping        *MappingTable // prefix rooms when set
	Source         *Path         // synchronize from this tree when set
	Sync           SyncOptions
	Old            *Path // compare against this snapshot when set
	MessageIDs     bool
	MessageIDRooms []string
}

// PipelineReport collects the reports of the steps that ran.
type PipelineReport struct {
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time        `json:"finished_at" yaml:"finished_at"`
	Prefix     *PrefixReport    `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Sync       *SyncReport      `json:"sync,omitempty" yaml:"sync,omitempty"`
	Classify   *ClassifyReport  `json:"classify" yaml:"classify"`
	Compare    *CompareReport   `json:"compare,omitempty" yaml:"compare,omitempty"`
	MessageIDs *MessageIDReport `json:"message_ids,omitempty" yaml:"message_ids,omitempty"`
}

// Run performs prefix, sync, classify, compare and message-ID approximation
// in that order, skipping the steps opts does not ask for.
// A failing step stops the run; the report holds the steps that completed.
func (s *LCBService) Run(chatsDir *Path, opts PipelineOptions) (*PipelineReport, error) {
	report := &PipelineReport{StartedAt: s.clock.Now()}
	var err error

	if opts.Mapping != nil {
		if report.Prefix, err = s.PrefixRooms(chatsDir, opts.Mapping); err != nil {
			return report, fmt.Errorf("prefixing rooms: %w", err)
		}
	}
	if opts.Source != nil {
		if report.Sync, err = s.Sync(chatsDir, opts.Source, opts.Sync); err != nil {
			return report, fmt.Errorf("synchronizing: %w", err)
		}
	}
	if report.Classify, err = s.Classify(chatsDir); err != nil {
		return report, fmt.Errorf("classifying: %w", err)
	}
	if opts.Old != nil {
		if report.Compare, err = s.CompareRooms(chatsDir, opts.Old); err != nil {
			return report, fmt.Errorf("comparing: %w", err)
		}
	}
	if opts.MessageIDs {
		if report.MessageIDs, err = s.ApproximateMessageIDs(chatsDir, opts.MessageIDRooms); err != nil {
			return report, fmt.Errorf("approximating message ids: %w", err)
		}
	}

	report.FinishedAt = s.clock.Now()
	s.logger.Info("run complete", "elapsed", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}
