package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// AddLoopParams holds parameters for recording an open loop.
type AddLoopParams struct {
	Summary          string
	Priority         string
	FollowUpQuestion string
	SourceMemoryID   string
}

// AddOpenLoop records an unresolved conversational thread.
func (s *SQLiteStore) AddOpenLoop(ctx context.Context, p AddLoopParams) (*model.OpenLoop, error) {
	if p.Summary == "" {
		return nil, errs.Validationf("loop summary is required")
	}
	if p.Priority == "" {
		p.Priority = "medium"
	}
	if !model.ValidPriorities[p.Priority] {
		return nil, errs.Validationf("unknown priority %q", p.Priority)
	}

	l := &model.OpenLoop{
		ID:               s.newID(),
		Summary:          p.Summary,
		Priority:         p.Priority,
		FollowUpQuestion: p.FollowUpQuestion,
		SourceMemoryID:   p.SourceMemoryID,
		CreatedAt:        time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO open_loops (id, summary, priority, follow_up_question, source_memory_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Summary, l.Priority, nullStr(l.FollowUpQuestion), nullStr(l.SourceMemoryID), fmtTime(l.CreatedAt))
	if err != nil {
		return nil, errs.Wrap("add loop", err)
	}
	return l, nil
}

// UnresolvedLoops lists open loops ordered by priority rank (high first),
// then newest first.
func (s *SQLiteStore) UnresolvedLoops(ctx context.Context, limit int) ([]model.OpenLoop, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loopColumns+` FROM open_loops WHERE resolved_at IS NULL
		 ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END,
		          created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Wrap("list loops", err)
	}
	defer rows.Close()

	var loops []model.OpenLoop
	for rows.Next() {
		l, err := scanLoop(rows)
		if err != nil {
			return nil, err
		}
		loops = append(loops, *l)
	}
	return loops, rows.Err()
}

// ResolveLoop marks a loop resolved. The update is guarded on
// resolved_at IS NULL, so resolving twice leaves the first timestamp
// untouched and the second call is a no-op.
func (s *SQLiteStore) ResolveLoop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE open_loops SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		fmtTime(time.Now()), id)
	if err != nil {
		return errs.Wrap("resolve loop", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Nothing updated: either already resolved (idempotent) or missing.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM open_loops WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFoundf("open loop %s", id)
	}
	return errs.Wrap("resolve loop", err)
}

// GetLoop retrieves a loop by id.
func (s *SQLiteStore) GetLoop(ctx context.Context, id string) (*model.OpenLoop, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loopColumns+` FROM open_loops WHERE id = ?`, id)
	l, err := scanLoop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("open loop %s", id)
	}
	if err != nil {
		return nil, errs.Wrap("get loop", err)
	}
	return l, nil
}

// DeleteLoop removes an open loop permanently.
func (s *SQLiteStore) DeleteLoop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM open_loops WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap("delete loop", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("open loop %s", id)
	}
	return nil
}

const loopColumns = `id, summary, priority, follow_up_question, source_memory_id, created_at, resolved_at`

func scanLoop(row scanner) (*model.OpenLoop, error) {
	var l model.OpenLoop
	var followUp, sourceID, resolvedAt sql.NullString
	var createdAt string

	if err := row.Scan(&l.ID, &l.Summary, &l.Priority, &followUp, &sourceID, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	l.FollowUpQuestion = followUp.String
	l.SourceMemoryID = sourceID.String
	l.CreatedAt = parseTime(createdAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		l.ResolvedAt = &t
	}
	return &l, nil
}
