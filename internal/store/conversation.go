package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// StartConversation opens a new conversation session.
func (s *SQLiteStore) StartConversation(ctx context.Context, sessionKey, channel string) (*model.Conversation, error) {
	c := &model.Conversation{
		ID:         s.newID(),
		SessionKey: sessionKey,
		Channel:    channel,
		StartedAt:  time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, session_key, channel, started_at, analyzed) VALUES (?, ?, ?, ?, 0)`,
		c.ID, nullStr(c.SessionKey), nullStr(c.Channel), fmtTime(c.StartedAt))
	if err != nil {
		return nil, errs.Wrap("start conversation", err)
	}
	return c, nil
}

// EndConversation closes a conversation with a summary.
func (s *SQLiteStore) EndConversation(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ?, summary = ? WHERE id = ?`,
		fmtTime(time.Now()), nullStr(summary), id)
	if err != nil {
		return errs.Wrap("end conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("conversation %s", id)
	}
	return nil
}

// UnanalyzedConversations lists ended conversations not yet analyzed,
// most recently ended first.
func (s *SQLiteStore) UnanalyzedConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE analyzed = 0 AND ended_at IS NOT NULL ORDER BY ended_at DESC`)
	if err != nil {
		return nil, errs.Wrap("list conversations", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// MarkAnalyzed flags a conversation as analyzed.
func (s *SQLiteStore) MarkAnalyzed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET analyzed = 1 WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap("mark analyzed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("conversation %s", id)
	}
	return nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return nil, errs.Wrap("get conversation", err)
	}
	return c, nil
}

const conversationColumns = `id, session_key, channel, started_at, ended_at, summary, analyzed`

func scanConversation(row scanner) (*model.Conversation, error) {
	var c model.Conversation
	var sessionKey, channel, endedAt, summary sql.NullString
	var startedAt string

	if err := row.Scan(&c.ID, &sessionKey, &channel, &startedAt, &endedAt, &summary, &c.Analyzed); err != nil {
		return nil, err
	}
	c.SessionKey = sessionKey.String
	c.Channel = channel.String
	c.Summary = summary.String
	c.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		c.EndedAt = &t
	}
	return &c, nil
}
