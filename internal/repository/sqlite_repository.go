package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository backed by the given SQLite handle.
// The same instance satisfies both the user and thread interfaces.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{sqliteRepository{db: db}}
}

// SQLiteRepository implements UserRepository and ThreadRepository.
type SQLiteRepository struct {
	sqliteRepository
}

// --- User operations ---

func (r *sqliteRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (email, name, avatar_url, oauth_id, oauth_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var avatar sql.NullString
	if user.AvatarURL != "" {
		avatar = sql.NullString{String: user.AvatarURL, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, query, user.Email, user.Name, avatar, user.OAuthID, user.OAuthType, now, now)
	if err != nil {
		return nil, fmt.Errorf("could not insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

func (r *sqliteRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, name, avatar_url, oauth_id, oauth_type, created_at, updated_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (r *sqliteRepository) GetUserByOAuthID(ctx context.Context, oauthID, oauthType string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, name, avatar_url, oauth_id, oauth_type, created_at, updated_at FROM users WHERE oauth_id = ? AND oauth_type = ?",
		oauthID, oauthType)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	var avatar sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.Name, &avatar, &user.OAuthID, &user.OAuthType, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if avatar.Valid {
		user.AvatarURL = avatar.String
	}
	return &user, nil
}

// --- Thread operations ---

const threadColumns = "id, uuid, user_id, title, messages, llm_provider, llm_model_version, public, version, created_at, updated_at"

func (r *sqliteRepository) CreateThread(ctx context.Context, thread *model.Thread) (*model.Thread, error) {
	if thread.UUID == "" {
		thread.UUID = uuid.NewString()
	}
	if thread.Messages == "" {
		thread.Messages = "[]"
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO threads (uuid, user_id, title, messages, llm_provider, llm_model_version, public, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		thread.UUID, thread.UserID, thread.Title, thread.Messages, thread.Provider, thread.ModelVersion, thread.Public, now, now)
	if err != nil {
		return nil, fmt.Errorf("could not insert thread: %w", err)
	}
	return r.GetThreadByUUID(ctx, thread.UUID)
}

func (r *sqliteRepository) GetThreadByID(ctx context.Context, id int64) (*model.Thread, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+threadColumns+" FROM threads WHERE id = ?", id)
	return scanThread(row)
}

func (r *sqliteRepository) GetThreadByUUID(ctx context.Context, threadUUID string) (*model.Thread, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+threadColumns+" FROM threads WHERE uuid = ?", threadUUID)
	return scanThread(row)
}

func (r *sqliteRepository) GetThreadsByUserID(ctx context.Context, userID int64) ([]*model.Thread, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+threadColumns+" FROM threads WHERE user_id = ? ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*model.Thread
	for rows.Next() {
		var t model.Thread
		if err := rows.Scan(&t.ID, &t.UUID, &t.UserID, &t.Title, &t.Messages, &t.Provider, &t.ModelVersion,
			&t.Public, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, &t)
	}
	return threads, rows.Err()
}

func scanThread(row *sql.Row) (*model.Thread, error) {
	var t model.Thread
	err := row.Scan(&t.ID, &t.UUID, &t.UserID, &t.Title, &t.Messages, &t.Provider, &t.ModelVersion,
		&t.Public, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *sqliteRepository) UpdateThreadByUUID(ctx context.Context, threadUUID string, updates ThreadUpdate, expectedVersion int64) error {
	setClauses := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if updates.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *updates.Title)
	}
	if updates.Messages != nil {
		setClauses = append(setClauses, "messages = ?")
		args = append(args, *updates.Messages)
	}
	if updates.Provider != nil {
		setClauses = append(setClauses, "llm_provider = ?")
		args = append(args, *updates.Provider)
	}
	if updates.ModelVersion != nil {
		setClauses = append(setClauses, "llm_model_version = ?")
		args = append(args, *updates.ModelVersion)
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "version = version + 1", "updated_at = ?")
	args = append(args, time.Now().UTC(), threadUUID, expectedVersion)

	query := "UPDATE threads SET " + strings.Join(setClauses, ", ") + " WHERE uuid = ? AND version = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing thread from a stale version.
		if _, err := r.GetThreadByUUID(ctx, threadUUID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *sqliteRepository) DeleteThreadByUUID(ctx context.Context, threadUUID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM threads WHERE uuid = ?", threadUUID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) SetThreadPublic(ctx context.Context, threadUUID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE threads SET public = TRUE, updated_at = ? WHERE uuid = ?", time.Now().UTC(), threadUUID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
