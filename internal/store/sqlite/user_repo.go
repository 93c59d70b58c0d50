package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hivechat/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	query := `INSERT INTO users (id, username, avatar, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Avatar); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT id, username, avatar FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT id, username, avatar FROM users WHERE username = ?`, username)
}

func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	return r.queryUsers(ctx, `SELECT id, username, avatar FROM users ORDER BY username ASC`)
}

func (r *UserRepo) Follow(ctx context.Context, followerID, userID string) error {
	query := `INSERT OR IGNORE INTO followers (follower_id, user_id, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, query, followerID, userID); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

func (r *UserRepo) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	query := `
		SELECT u.id, u.username, u.avatar
		FROM users u
		JOIN followers f ON f.follower_id = u.id
		WHERE f.user_id = ?
		ORDER BY u.username ASC
	`
	return r.queryUsers(ctx, query, userID)
}

func (r *UserRepo) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
