package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/store"
)

// DecayEngine ages memory importance and archives memories that fall below
// the archival threshold. Each run is a one-shot batch over the current
// snapshot of non-archived memories; decay is a flat multiplicative step
// per invocation, not time-weighted, so missed runs are not compensated.
// The caller owns invocation cadence.
type DecayEngine struct {
	store *store.SQLiteStore
	log   *logrus.Entry
}

// NewDecayEngine creates a decay engine over the record store.
func NewDecayEngine(s *store.SQLiteStore, log *logrus.Entry) *DecayEngine {
	return &DecayEngine{store: s, log: log}
}

// DecayOptions configure one decay run.
type DecayOptions struct {
	// Rate is the global multiplicative decay rate, overridden per memory
	// by its decay_factor.
	Rate float64
	// MinImportance is the archival threshold.
	MinImportance float64
	// DryRun computes the identical partition without mutating the store.
	DryRun bool
	// PreviewLimit caps the dry-run preview list; counts stay exact.
	PreviewLimit int
}

// DecayAction classifies what a run did (or would do) to one memory.
type DecayAction string

const (
	ActionProtected DecayAction = "protected"
	ActionDecay     DecayAction = "decay"
	ActionArchive   DecayAction = "archive"
)

// DecayPreview is one entry of a dry-run preview.
type DecayPreview struct {
	ID            string      `json:"id"`
	Content       string      `json:"content"`
	Action        DecayAction `json:"action"`
	Importance    float64     `json:"importance"`
	NewImportance float64     `json:"new_importance"`
}

// DecayReport summarizes one run.
type DecayReport struct {
	Scanned   int `json:"scanned"`
	Decayed   int `json:"decayed"`
	Archived  int `json:"archived"`
	Protected int `json:"protected"`
	// Skipped counts rows whose guarded update did not apply because a
	// concurrent writer changed them between snapshot and update.
	Skipped int            `json:"skipped,omitempty"`
	DryRun  bool           `json:"dry_run,omitempty"`
	Preview []DecayPreview `json:"preview,omitempty"`
}

const defaultPreviewLimit = 20

// Run executes one decay pass. Per memory: protected metadata exempts it
// entirely; otherwise the effective rate is its decay_factor or the global
// rate, and the product either re-scores the row or, below the threshold,
// archives it. Archival leaves importance at its prior value, and the two
// outcomes are mutually exclusive per memory per run. Mutations are
// single-statement updates guarded on the importance read in the snapshot,
// so two concurrent runs cannot double-apply decay to the same row.
func (d *DecayEngine) Run(ctx context.Context, opts DecayOptions) (*DecayReport, error) {
	if opts.Rate <= 0 {
		opts.Rate = 0.95
	}
	if opts.MinImportance <= 0 {
		opts.MinImportance = 0.1
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = defaultPreviewLimit
	}

	snapshot, err := d.store.ActiveMemoriesSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	report := &DecayReport{Scanned: len(snapshot), DryRun: opts.DryRun}
	for _, m := range snapshot {
		if m.Protected() {
			report.Protected++
			d.preview(report, opts, DecayPreview{
				ID: m.ID, Content: snippet(m.Content), Action: ActionProtected,
				Importance: m.Importance, NewImportance: m.Importance,
			})
			continue
		}

		rate := opts.Rate
		if m.DecayFactor != nil {
			rate = *m.DecayFactor
		}
		newImportance := m.Importance * rate

		if newImportance < opts.MinImportance {
			if opts.DryRun {
				report.Archived++
				d.preview(report, opts, DecayPreview{
					ID: m.ID, Content: snippet(m.Content), Action: ActionArchive,
					Importance: m.Importance, NewImportance: newImportance,
				})
				continue
			}
			ok, err := d.store.ArchiveMemoryIf(ctx, m.ID, m.Importance)
			if err != nil {
				return report, err
			}
			if ok {
				report.Archived++
			} else {
				report.Skipped++
			}
			continue
		}

		if opts.DryRun {
			report.Decayed++
			d.preview(report, opts, DecayPreview{
				ID: m.ID, Content: snippet(m.Content), Action: ActionDecay,
				Importance: m.Importance, NewImportance: newImportance,
			})
			continue
		}
		ok, err := d.store.UpdateImportanceIf(ctx, m.ID, m.Importance, newImportance)
		if err != nil {
			return report, err
		}
		if ok {
			report.Decayed++
		} else {
			report.Skipped++
		}
	}

	if !opts.DryRun {
		d.log.WithFields(logrus.Fields{
			"scanned": report.Scanned, "decayed": report.Decayed,
			"archived": report.Archived, "protected": report.Protected,
			"skipped": report.Skipped,
		}).Info("decay run completed")
	}
	return report, nil
}

func (d *DecayEngine) preview(r *DecayReport, opts DecayOptions, p DecayPreview) {
	if opts.DryRun && len(r.Preview) < opts.PreviewLimit {
		r.Preview = append(r.Preview, p)
	}
}

func snippet(content string) string {
	const max = 80
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "…"
}
