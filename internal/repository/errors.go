package repository

import "errors"

// Repository-level sentinel errors. The service layer translates these into
// domain errors so business logic stays decoupled from the database driver.

// ErrNotFound is returned when a single-entity query matches no rows. It
// abstracts away the driver's sql.ErrNoRows.
var ErrNotFound = errors.New("repository: not found")

// ErrVersionConflict is returned by UpdateThreadByUUID when the caller's
// expected version is stale, meaning another writer updated the thread since
// it was read. The caller should re-read and retry.
var ErrVersionConflict = errors.New("repository: version conflict")
