package repository

import (
	"context"

	"driftchat/internal/model"
)

// UserRepository defines storage operations for identity records.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	// GetUserByOAuthID resolves an external identity; there is at most one
	// record per (oauth_id, oauth_type) pair.
	GetUserByOAuthID(ctx context.Context, oauthID, oauthType string) (*model.User, error)
}

// ThreadUpdate is the partial-update set accepted by UpdateThreadByUUID. Nil
// fields are left untouched.
type ThreadUpdate struct {
	Title        *string
	Messages     *string
	Provider     *string
	ModelVersion *string
}

// ThreadRepository defines storage operations for conversations. All
// identifier-bearing lookups are indexed. UpdateThreadByUUID is the only
// mutation path for message-log growth: callers read the current log, append,
// and write the whole array back, guarded by the thread's version.
type ThreadRepository interface {
	CreateThread(ctx context.Context, thread *model.Thread) (*model.Thread, error)
	GetThreadByID(ctx context.Context, id int64) (*model.Thread, error)
	GetThreadByUUID(ctx context.Context, uuid string) (*model.Thread, error)
	// GetThreadsByUserID returns the user's threads, most recently updated
	// first.
	GetThreadsByUserID(ctx context.Context, userID int64) ([]*model.Thread, error)
	// UpdateThreadByUUID applies the partial update iff the stored version
	// still equals expectedVersion, bumping version and updated_at. A stale
	// version yields ErrVersionConflict.
	UpdateThreadByUUID(ctx context.Context, uuid string, updates ThreadUpdate, expectedVersion int64) error
	DeleteThreadByUUID(ctx context.Context, uuid string) error
	// SetThreadPublic flips the thread public. Idempotent.
	SetThreadPublic(ctx context.Context, uuid string) error
}
