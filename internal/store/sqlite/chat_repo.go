package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hivechat/internal/domain"
)

func newID() string {
	return uuid.NewString()
}

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

const chatColumns = `c.id, c.name, c.is_group, c.group_id, c.admin_id, c.created_at, c.updated_at`

func (r *ChatRepo) Create(ctx context.Context, c *domain.Chat, participantIDs []string) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, is_group, group_id, admin_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.IsGroupChat, c.GroupID, c.Admin, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_participants (user_id, chat_id, joined_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, uid, c.ID); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return r.loadParticipants(ctx, c)
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	c := &domain.Chat{}
	err := r.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats c WHERE c.id = ?`, id).Scan(
		&c.ID,
		&c.Name,
		&c.IsGroupChat,
		&c.GroupID,
		&c.Admin,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if err := r.loadParticipants(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC
	`
	chats, err := r.queryChats(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		if err := r.loadParticipants(ctx, c); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func (r *ChatRepo) FindDirect(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats c
		JOIN chat_participants cp1 ON cp1.chat_id = c.id AND cp1.user_id = ?
		JOIN chat_participants cp2 ON cp2.chat_id = c.id AND cp2.user_id = ?
		WHERE c.is_group = 0
		LIMIT 1
	`
	chats, err := r.queryChats(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("find direct chat: %w", err)
	}
	if len(chats) == 0 {
		return nil, nil
	}
	if err := r.loadParticipants(ctx, chats[0]); err != nil {
		return nil, err
	}
	return chats[0], nil
}

func (r *ChatRepo) Rename(ctx context.Context, id, name string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chats SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// queryChats reads every row before returning so the caller can issue
// follow-up queries on the single connection.
func (r *ChatRepo) queryChats(ctx context.Context, query string, args ...any) ([]*domain.Chat, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var res []*domain.Chat
	for rows.Next() {
		c := &domain.Chat{}
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.IsGroupChat,
			&c.GroupID,
			&c.Admin,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ChatRepo) loadParticipants(ctx context.Context, c *domain.Chat) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar
		FROM users u
		JOIN chat_participants cp ON cp.user_id = u.id
		WHERE cp.chat_id = ?
		ORDER BY cp.joined_at ASC, u.username ASC
	`, c.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	c.Participants = c.Participants[:0]
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		c.Participants = append(c.Participants, u)
	}
	return rows.Err()
}
