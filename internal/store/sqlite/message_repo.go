package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hivechat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageSelect = `
	SELECT m.id, m.chat_id, m.content, m.kind, m.edited, m.created_at,
		u.id, u.username, u.avatar,
		COALESCE(rm.id, ''), COALESCE(rm.content, ''), COALESCE(ru.id, ''), COALESCE(ru.username, ''), COALESCE(ru.avatar, '')
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN messages rm ON rm.id = m.reply_to
	LEFT JOIN users ru ON ru.id = rm.sender_id
`

// Create stores m and assigns its id and creation time. Messages are ordered
// by insertion within a chat.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if !m.Kind.Valid() {
		m.Kind = domain.KindText
	}
	var replyTo string
	if m.ReplyTo != nil {
		replyTo = m.ReplyTo.MessageID
	}
	query := `
		INSERT INTO messages (id, chat_id, sender_id, content, kind, reply_to, edited, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = ?))
	`
	if _, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.ChatID,
		m.Sender.ID,
		m.Content,
		string(m.Kind),
		replyTo,
		m.Edited,
		m.CreatedAt,
		m.ChatID,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	msgs, err := r.query(ctx, messageSelect+` WHERE m.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

// ListForChat returns the chat's messages oldest first.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	return r.query(ctx, messageSelect+` WHERE m.chat_id = ? ORDER BY m.seq ASC`, chatID)
}

func (r *MessageRepo) Last(ctx context.Context, chatID string) (*domain.Message, error) {
	msgs, err := r.query(ctx, messageSelect+` WHERE m.chat_id = ? ORDER BY m.seq DESC LIMIT 1`, chatID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE messages SET content = ?, edited = 1 WHERE id = ?`, content, id); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (r *MessageRepo) query(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		var (
			m     = &domain.Message{}
			kind  string
			reply domain.ReplyRef
			body  string
		)
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.Content,
			&kind,
			&m.Edited,
			&m.CreatedAt,
			&m.Sender.ID,
			&m.Sender.Username,
			&m.Sender.Avatar,
			&reply.MessageID,
			&body,
			&reply.Sender.ID,
			&reply.Sender.Username,
			&reply.Sender.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Kind = domain.ContentKind(kind)
		if reply.MessageID != "" {
			reply.Snippet = domain.Snippet(body)
			m.ReplyTo = &reply
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
