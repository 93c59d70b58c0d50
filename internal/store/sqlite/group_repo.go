package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hivechat/internal/domain"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	if g.ID == "" {
		g.ID = newID()
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO groups_ (id, name, chat_id) VALUES (?, ?, ?)`, g.ID, g.Name, g.ChatID); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// ListForUser returns the groups whose chat userID takes part in.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.chat_id
		FROM groups_ g
		JOIN chat_participants cp ON cp.chat_id = g.chat_id
		WHERE cp.user_id = ?
		ORDER BY g.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var res []*domain.Group
	for rows.Next() {
		g := &domain.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.ChatID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
