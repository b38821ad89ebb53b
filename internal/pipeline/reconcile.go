package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/store"
	"github.com/cortexmem/cortex/internal/vector"
)

// Reconciler detects divergence between the record store and the vector
// mirror. The dual write has no cross-store transaction, so gaps are
// expected over time; the sweep surfaces them to operators but does not
// auto-heal.
type Reconciler struct {
	store *store.SQLiteStore
	index vector.Index
	log   *logrus.Entry
}

// NewReconciler creates a reconciler over the store and mirror.
func NewReconciler(s *store.SQLiteStore, idx vector.Index, log *logrus.Entry) *Reconciler {
	return &Reconciler{store: s, index: idx, log: log}
}

// ConsistencyReport is the outcome of one sweep. Archived memories keep
// their mirror records, so a mirror entry backed by any memory row
// (archived or not) is consistent; only active rows with no mirror record
// and mirror records with no backing row count as gaps.
type ConsistencyReport struct {
	StoreMemories int `json:"store_memories"`
	ActiveRows    int `json:"active_rows"`
	VectorCount   int `json:"vector_count"`
	// MissingMirror lists non-archived memories with no mirror record:
	// durable but unsearchable.
	MissingMirror []string `json:"missing_mirror,omitempty"`
	// OrphanMirrors counts mirror records with no backing memory row.
	OrphanMirrors int  `json:"orphan_mirrors"`
	Consistent    bool `json:"consistent"`
}

// Run compares store ids against the mirror.
func (r *Reconciler) Run(ctx context.Context) (*ConsistencyReport, error) {
	ids, err := r.store.MemoryIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		StoreMemories: len(ids),
		VectorCount:   r.index.Count(),
	}

	matched := 0
	for id, archived := range ids {
		if !archived {
			report.ActiveRows++
		}
		if r.index.Has(ctx, id) {
			matched++
		} else if !archived {
			report.MissingMirror = append(report.MissingMirror, id)
		}
	}
	report.OrphanMirrors = report.VectorCount - matched
	if report.OrphanMirrors < 0 {
		report.OrphanMirrors = 0
	}
	report.Consistent = len(report.MissingMirror) == 0 && report.OrphanMirrors == 0

	if !report.Consistent {
		r.log.WithFields(logrus.Fields{
			"missing_mirror": len(report.MissingMirror),
			"orphan_mirrors": report.OrphanMirrors,
		}).Warn("record store and vector mirror have diverged")
	}
	return report, nil
}
