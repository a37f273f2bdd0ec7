// Package store defines durable persistence for active session records.
//
// One record per user; the record must survive process restarts so a
// session resumes with no time lost or double counted. Implementations
// must make Put durable before returning: a start that did not reach
// disk is a start that did not happen.
package store

import (
	"context"

	"github.com/zensu/focusflow/internal/domain/model"
)

// Store provides get/put/delete for one active record per user.
type Store interface {
	// Get returns the user's active record or ErrNotFound.
	Get(ctx context.Context, userID string) (model.SessionRecord, error)

	// Put durably writes the record, replacing any previous one.
	Put(ctx context.Context, rec model.SessionRecord) error

	// Delete removes the user's record. Deleting an absent record is
	// not an error.
	Delete(ctx context.Context, userID string) error

	// All returns every stored record, for restore-on-boot.
	All(ctx context.Context) ([]model.SessionRecord, error)
}
