package store

import (
	"context"
	"database/sql"
	"time"
)

// Stats summarizes the record-store side of the system. VectorCount is
// filled in by the caller; comparing it with ActiveMemories is the
// operator-facing consistency signal for the dual-write design.
type Stats struct {
	Memories         int            `json:"memories"`
	ActiveMemories   int            `json:"active_memories"`
	ArchivedMemories int            `json:"archived_memories"`
	Entities         int            `json:"entities"`
	OpenLoops        int            `json:"open_loops"`
	ActiveLoops      int            `json:"active_loops"`
	Conversations    int            `json:"conversations"`
	PreparedContexts int            `json:"prepared_contexts"`
	UnusedContexts   int            `json:"unused_contexts"`
	MemoryTypes      map[string]int `json:"memory_types"`
	LastAnalyze      *time.Time     `json:"last_analyze,omitempty"`
	LastDecay        *time.Time     `json:"last_decay,omitempty"`
	VectorCount      int            `json:"vector_count"`
}

// Stats returns record-store statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{MemoryTypes: map[string]int{}}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM memories`, &st.Memories},
		{`SELECT COUNT(*) FROM memories WHERE archived = 0`, &st.ActiveMemories},
		{`SELECT COUNT(*) FROM entities`, &st.Entities},
		{`SELECT COUNT(*) FROM open_loops`, &st.OpenLoops},
		{`SELECT COUNT(*) FROM open_loops WHERE resolved_at IS NULL`, &st.ActiveLoops},
		{`SELECT COUNT(*) FROM conversations`, &st.Conversations},
		{`SELECT COUNT(*) FROM prepared_contexts`, &st.PreparedContexts},
		{`SELECT COUNT(*) FROM prepared_contexts WHERE used_at IS NULL AND expires_at > ?`, &st.UnusedContexts},
	}
	now := fmtTime(time.Now())
	for _, c := range counts {
		var err error
		if c.query[len(c.query)-1] == '?' {
			err = s.db.QueryRowContext(ctx, c.query, now).Scan(c.dest)
		} else {
			err = s.db.QueryRowContext(ctx, c.query).Scan(c.dest)
		}
		if err != nil {
			return nil, err
		}
	}
	st.ArchivedMemories = st.Memories - st.ActiveMemories

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*) FROM memories WHERE archived = 0
		 GROUP BY memory_type ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		st.MemoryTypes[typ] = n
	}

	st.LastAnalyze = s.maxTime(ctx, `SELECT MAX(created_at) FROM prepared_contexts`)
	st.LastDecay = s.maxTime(ctx, `SELECT MAX(updated_at) FROM memories WHERE archived = 1`)
	return st, nil
}

func (s *SQLiteStore) maxTime(ctx context.Context, query string) *time.Time {
	var v sql.NullString
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil || !v.Valid {
		return nil
	}
	t := parseTime(v.String)
	return &t
}
