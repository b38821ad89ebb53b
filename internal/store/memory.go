package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// AddMemoryParams holds parameters for storing a memory.
type AddMemoryParams struct {
	Content     string
	Type        string
	Source      string
	Importance  float64
	DecayFactor *float64
	Metadata    model.Metadata
}

// AddMemory inserts a memory row and returns it. Input is validated before
// any persistence.
func (s *SQLiteStore) AddMemory(ctx context.Context, p AddMemoryParams) (*model.Memory, error) {
	if p.Content == "" {
		return nil, errs.Validationf("memory content is required")
	}
	if p.Type == "" {
		p.Type = "observation"
	}
	if !model.ValidMemoryTypes[p.Type] {
		return nil, errs.Validationf("unknown memory type %q", p.Type)
	}

	now := time.Now()
	m := &model.Memory{
		ID:          s.newID(),
		Content:     p.Content,
		Type:        p.Type,
		Source:      p.Source,
		Importance:  p.Importance,
		DecayFactor: p.DecayFactor,
		Metadata:    p.Metadata.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Metadata == nil {
		m.Metadata = model.Metadata{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, memory_type, source, importance, decay_factor, metadata, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.ID, m.Content, m.Type, nullStr(m.Source), m.Importance, m.DecayFactor,
		marshalMeta(m.Metadata), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, errs.Wrap("add memory", err)
	}
	return m, nil
}

// GetMemory retrieves a memory by id.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("memory %s", id)
	}
	if err != nil {
		return nil, errs.Wrap("get memory", err)
	}
	return m, nil
}

// ListMemoriesParams filters a structured memory listing.
type ListMemoriesParams struct {
	Type            string
	MinImportance   *float64
	Limit           int
	IncludeArchived bool
}

// ListMemories returns memories matching the filters, newest first.
// Archived memories are excluded unless explicitly requested.
func (s *SQLiteStore) ListMemories(ctx context.Context, p ListMemoriesParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE 1=1`
	var args []any
	if !p.IncludeArchived {
		query += ` AND archived = 0`
	}
	if p.Type != "" {
		query += ` AND memory_type = ?`
		args = append(args, p.Type)
	}
	if p.MinImportance != nil {
		query += ` AND importance >= ?`
		args = append(args, *p.MinImportance)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap("list memories", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// RecentMemories returns the most recent non-archived memories.
func (s *SQLiteStore) RecentMemories(ctx context.Context, limit int) ([]model.Memory, error) {
	return s.ListMemories(ctx, ListMemoriesParams{Limit: limit})
}

// UpdateImportanceIf re-scores a memory only if its stored importance still
// equals expected and it has not been archived meanwhile. Reports whether
// the update applied; a false return means a concurrent writer got there
// first and this run must skip the row.
func (s *SQLiteStore) UpdateImportanceIf(ctx context.Context, id string, expected, updated float64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET importance = ?, updated_at = ? WHERE id = ? AND archived = 0 AND importance = ?`,
		updated, fmtTime(time.Now()), id, expected)
	if err != nil {
		return false, errs.Wrap("update importance", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ArchiveMemoryIf archives a memory only if its stored importance still
// equals expected. Archival and re-scoring are mutually exclusive per
// memory per decay run; the importance is left at its prior value.
func (s *SQLiteStore) ArchiveMemoryIf(ctx context.Context, id string, expected float64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived = 1, updated_at = ? WHERE id = ? AND archived = 0 AND importance = ?`,
		fmtTime(time.Now()), id, expected)
	if err != nil {
		return false, errs.Wrap("archive memory", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ArchiveMemory archives a memory unconditionally, optionally recording the
// memory it was consolidated into. Archival never deletes.
func (s *SQLiteStore) ArchiveMemory(ctx context.Context, id, consolidatedInto string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived = 1, consolidated_into = ?, updated_at = ? WHERE id = ?`,
		nullStr(consolidatedInto), fmtTime(time.Now()), id)
	if err != nil {
		return errs.Wrap("archive memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("memory %s", id)
	}
	return nil
}

// SetProtected sets or clears the decay-protection flag in the memory's
// metadata map.
func (s *SQLiteStore) SetProtected(ctx context.Context, id string, protected bool) error {
	m, err := s.GetMemory(ctx, id)
	if err != nil {
		return err
	}
	meta := m.Metadata.Clone()
	if meta == nil {
		meta = model.Metadata{}
	}
	if protected {
		meta["protected"] = true
	} else {
		delete(meta, "protected")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET metadata = ?, updated_at = ? WHERE id = ?`,
		marshalMeta(meta), fmtTime(time.Now()), id)
	return errs.Wrap("set protected", err)
}

// DeleteMemory removes a memory row and its entity mentions. The caller is
// responsible for the mirror record; a failure after this commit leaves an
// orphan there, the documented dual-write asymmetry.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entity_mentions WHERE memory_id = ?`, id); err != nil {
		return errs.Wrap("delete mentions", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap("delete memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("memory %s", id)
	}
	return nil
}

// DeleteMemoriesByPrefix deletes every memory whose content starts with the
// given prefix, cascading mention deletion. Returns the deleted ids so the
// caller can clean up the vector mirror.
func (s *SQLiteStore) DeleteMemoriesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memories WHERE content LIKE ?`, prefix+"%")
	if err != nil {
		return nil, errs.Wrap("delete by prefix", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := s.DeleteMemory(ctx, id); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return ids, err
		}
	}
	return ids, nil
}

// ActiveMemoriesSnapshot returns every non-archived memory, oldest first.
// Decay runs operate on this one-shot snapshot; there is no resumable
// cursor.
func (s *SQLiteStore) ActiveMemoriesSnapshot(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE archived = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, errs.Wrap("decay snapshot", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// MemoryIDs returns the ids of all memory rows, archived included.
func (s *SQLiteStore) MemoryIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, archived FROM memories`)
	if err != nil {
		return nil, errs.Wrap("memory ids", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		var archived bool
		if err := rows.Scan(&id, &archived); err != nil {
			return nil, err
		}
		ids[id] = archived
	}
	return ids, rows.Err()
}

const memoryColumns = `id, content, memory_type, source, importance, decay_factor, metadata, archived, consolidated_into, created_at, updated_at`

func scanMemory(row scanner) (*model.Memory, error) {
	var m model.Memory
	var source, meta, consolidated sql.NullString
	var decay sql.NullFloat64
	var createdAt, updatedAt string

	err := row.Scan(&m.ID, &m.Content, &m.Type, &source, &m.Importance, &decay,
		&meta, &m.Archived, &consolidated, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.Source = source.String
	m.ConsolidatedInto = consolidated.String
	if decay.Valid {
		f := decay.Float64
		m.DecayFactor = &f
	}
	m.Metadata = unmarshalMeta(meta)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
