package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// AddEntity inserts a new named entity. Names are unique case-insensitively;
// inserting a duplicate fails on the unique index.
func (s *SQLiteStore) AddEntity(ctx context.Context, name, entityType, summary string, metadata model.Metadata) (*model.Entity, error) {
	if name == "" {
		return nil, errs.Validationf("entity name is required")
	}
	if entityType == "" {
		entityType = "person"
	}
	if !model.ValidEntityTypes[entityType] {
		return nil, errs.Validationf("unknown entity type %q", entityType)
	}

	e := &model.Entity{
		ID:             s.newID(),
		Name:           name,
		Type:           entityType,
		Summary:        summary,
		Metadata:       metadata.Clone(),
		LastReferenced: time.Now(),
	}
	if e.Metadata == nil {
		e.Metadata = model.Metadata{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, entity_type, summary, metadata, last_referenced)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Type, nullStr(e.Summary), marshalMeta(e.Metadata), fmtTime(e.LastReferenced))
	if err != nil {
		return nil, errs.Wrap("add entity", err)
	}
	return e, nil
}

// GetEntityByName looks up an entity by case-insensitive exact name.
func (s *SQLiteStore) GetEntityByName(ctx context.Context, name string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE LOWER(name) = LOWER(?)`, name)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("entity %q", name)
	}
	if err != nil {
		return nil, errs.Wrap("get entity", err)
	}
	return e, nil
}

// MergeEntity applies the entity merge semantics to an existing row: a
// non-empty incoming summary replaces the stored one, incoming metadata keys
// shallow-overwrite stored keys, all other keys are preserved.
//
// The metadata update is compare-and-set on the previously read metadata
// JSON so two concurrent merges cannot silently drop each other's keys; the
// losing writer re-reads and re-merges, bounded to a few attempts.
func (s *SQLiteStore) MergeEntity(ctx context.Context, id, summary string, incoming model.Metadata) (*model.Entity, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		e, err := s.getEntity(ctx, id)
		if err != nil {
			return nil, err
		}

		newSummary := e.Summary
		if summary != "" {
			newSummary = summary
		}
		merged := e.Metadata.Merge(incoming)

		res, err := s.db.ExecContext(ctx,
			`UPDATE entities SET summary = ?, metadata = ?, last_referenced = ? WHERE id = ? AND metadata = ?`,
			nullStr(newSummary), marshalMeta(merged), fmtTime(time.Now()), id, marshalMeta(e.Metadata))
		if err != nil {
			return nil, errs.Wrap("merge entity", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			e.Summary = newSummary
			e.Metadata = merged
			return e, nil
		}
		// Lost the race; re-read and merge again.
	}
	return nil, errs.Wrap("merge entity", errors.New("too many concurrent merges"))
}

// TouchEntity bumps last_referenced.
func (s *SQLiteStore) TouchEntity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entities SET last_referenced = ? WHERE id = ?`, fmtTime(time.Now()), id)
	return errs.Wrap("touch entity", err)
}

// AddEntityMention links an entity to a memory and bumps last_referenced.
func (s *SQLiteStore) AddEntityMention(ctx context.Context, entityID, memoryID, snippet string) (string, error) {
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_mentions (id, entity_id, memory_id, context) VALUES (?, ?, ?, ?)`,
		id, entityID, memoryID, nullStr(snippet))
	if err != nil {
		return "", errs.Wrap("add mention", err)
	}
	return id, s.TouchEntity(ctx, entityID)
}

// ListEntities returns entities, most recently referenced first, optionally
// filtered by type.
func (s *SQLiteStore) ListEntities(ctx context.Context, entityType string) ([]model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities`
	var args []any
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY last_referenced DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap("list entities", err)
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// DeleteEntity removes an entity; mentions cascade.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap("delete entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("entity %s", id)
	}
	return nil
}

func (s *SQLiteStore) getEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("entity %s", id)
	}
	if err != nil {
		return nil, errs.Wrap("get entity", err)
	}
	return e, nil
}

const entityColumns = `id, name, entity_type, summary, metadata, last_referenced`

func scanEntity(row scanner) (*model.Entity, error) {
	var e model.Entity
	var summary, meta sql.NullString
	var lastRef string

	if err := row.Scan(&e.ID, &e.Name, &e.Type, &summary, &meta, &lastRef); err != nil {
		return nil, err
	}
	e.Summary = summary.String
	e.Metadata = unmarshalMeta(meta)
	e.LastReferenced = parseTime(lastRef)
	return &e, nil
}
