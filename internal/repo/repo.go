// Package repo combines the offline cache with the backend. Reads are
// fetch-then-get: the cached copy is emitted first and the backend's copy
// follows. Writes go to the backend first and are persisted only once it
// accepts them.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/model"
)

// DefaultPageSize is how many models a paged read asks for.
const DefaultPageSize = 20

// Store is the local half of a repository. *store.Collection satisfies it.
type Store[M any] interface {
	Get(id string) (M, bool, error)
	Upsert(models ...M) error
	Delete(ids ...string) (int, error)
	DeleteByParent(parent string) (int, error)
	Before(parent string, before time.Time, limit int) ([]M, error)
}

// Config holds the settings shared by every repository.
type Config struct {
	PageSize int
	Logger   *slog.Logger
}

// Repo is the repository for one model type.
type Repo[M model.Model[M]] struct {
	name     string
	remote   Remote[M]
	local    Store[M]
	pageSize int
	logger   *slog.Logger

	// cascade removes local rows that depend on a deleted model.
	cascade func(M) error
}

// New creates a repository. cascade may be nil.
func New[M model.Model[M]](name string, remote Remote[M], local Store[M], cfg Config, cascade func(M) error) *Repo[M] {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Repo[M]{
		name:     name,
		remote:   remote,
		local:    local,
		pageSize: pageSize,
		logger:   logging.Component(cfg.Logger, "repo").With(slog.String("collection", name)),
		cascade:  cascade,
	}
}

// Name is the collection the repository serves.
func (r *Repo[M]) Name() string { return r.name }

// PageSize is the number of models per paged read.
func (r *Repo[M]) PageSize() int { return r.pageSize }

// Get emits the cached model, if any, then the backend's. The backend
// copy is persisted, and not emitted when it hashes the same as the
// cached one. If the backend reports the model gone, the cached copy is
// deleted and the error returned.
func (r *Repo[M]) Get(ctx context.Context, id string, emit func(M) error) error {
	cached, found, err := r.local.Get(id)
	if err != nil {
		return err
	}

	var cachedHash uint64

	if found {
		cachedHash, _ = contentHash(cached)

		if err := emit(cached); err != nil {
			return err
		}
	}

	fetched, err := r.remote.Fetch(ctx, id)
	if err != nil {
		if api.IsInvalidObject(err) && found {
			r.deleteLocal(cached)
		}

		return err
	}

	if err := r.local.Upsert(fetched); err != nil {
		return err
	}

	if h, err := contentHash(fetched); found && err == nil && h == cachedHash {
		r.logger.Debug("remote copy unchanged", slog.String("id", id))
		return nil
	}

	return emit(fetched)
}

// ModelsBefore emits the cached page under parent, then the backend's,
// which is persisted first. A zero before means the newest page.
func (r *Repo[M]) ModelsBefore(ctx context.Context, parent string, before time.Time, emit func([]M) error) error {
	cursor := before
	if cursor.IsZero() {
		cursor = model.FutureDate()
	}

	cached, err := r.local.Before(parent, cursor, r.pageSize)
	if err != nil {
		return err
	}

	if err := emit(cached); err != nil {
		return err
	}

	fetched, err := r.remote.Page(ctx, parent, before, r.pageSize)
	if err != nil {
		return err
	}

	if len(fetched) > 0 {
		if err := r.local.Upsert(fetched...); err != nil {
			return err
		}
	}

	return emit(fetched)
}

// CreateOrUpdate sends m to the backend, creating it when it has no
// identity yet. On success m is updated in place with the backend's copy,
// persisted and returned. If the backend no longer knows m, the cached
// copy is deleted.
func (r *Repo[M]) CreateOrUpdate(ctx context.Context, m M) (M, error) {
	var (
		saved M
		err   error
	)

	if m.IsEmpty() {
		saved, err = r.remote.Create(ctx, m)
	} else {
		saved, err = r.remote.Update(ctx, m)
	}

	if err != nil {
		if api.IsInvalidObject(err) {
			r.deleteLocal(m)
		}

		return m, err
	}

	m.Update(saved)

	if err := r.local.Upsert(m); err != nil {
		return m, err
	}

	return m, nil
}

// Delete removes m from the backend, then locally along with anything
// depending on it. A backend invalid-object error still deletes locally
// and is returned.
func (r *Repo[M]) Delete(ctx context.Context, m M) error {
	err := r.remote.Delete(ctx, m)
	if err != nil && !api.IsInvalidObject(err) {
		return err
	}

	if localErr := r.deleteLocalErr(m); localErr != nil {
		return errors.Join(err, localErr)
	}

	return err
}

// deleteLocal drops m from the cache, logging rather than returning a
// failure because the caller is already reporting the backend error.
func (r *Repo[M]) deleteLocal(m M) {
	if err := r.deleteLocalErr(m); err != nil {
		r.logger.Warn("deleting stale local copy",
			slog.String("id", m.ItemID()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Repo[M]) deleteLocalErr(m M) error {
	if _, err := r.local.Delete(m.ItemID()); err != nil {
		return fmt.Errorf("deleting local %s %s: %w", r.name, m.ItemID(), err)
	}

	if r.cascade != nil {
		if err := r.cascade(m); err != nil {
			return fmt.Errorf("cascading delete of %s %s: %w", r.name, m.ItemID(), err)
		}
	}

	return nil
}

func contentHash(v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	return xxhash.Sum64(data), nil
}
