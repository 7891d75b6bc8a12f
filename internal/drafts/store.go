// Package drafts keeps autosaved post drafts in an embedded badger database.
package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const keyPrefix = "draft:"

// Draft is an autosaved, unpublished post. Tags hold the raw comma-separated
// text from the editor.
type Draft struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	Tags    string    `json:"tags"`
	SavedAt time.Time `json:"saved_at"`
	IsDraft bool      `json:"is_draft"`
}

// Options configures a Store.
type Options struct {
	Dir      string
	InMemory bool
	// TTL expires drafts that have not been saved again for this long.
	// Zero keeps drafts until deleted.
	TTL    time.Duration
	Logger *slog.Logger
}

// Store persists drafts under draft:<id>.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the draft database. The directory is created when missing.
func Open(o Options) (*Store, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if o.Dir == "" {
			return nil, errors.New("drafts: directory is required unless running in memory")
		}
		if err := os.MkdirAll(o.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("drafts: create %s: %w", o.Dir, err)
		}
		opts = badger.DefaultOptions(o.Dir)
	}
	opts.Logger = &badgerLogger{logger: logger.With("component", "drafts")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("drafts: open: %w", err)
	}
	return &Store{db: db, ttl: o.TTL, logger: logger, now: time.Now}, nil
}

// OpenInMemory opens a throwaway store for tests and tools.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func draftKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// DefaultID is the id given to a draft saved without one.
func DefaultID(now time.Time) string {
	return "draft_" + strconv.FormatInt(now.Unix(), 10)
}

// Save stores d, assigning an id when it has none and stamping SavedAt.
// Saving an existing id replaces that draft.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now()
	if d.ID == "" {
		d.ID = DefaultID(now)
	}
	d.SavedAt = now.UTC()
	d.IsDraft = true

	value, err := json.Marshal(d)
	if err != nil {
		return models.NewInternalError(err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(draftKey(d.ID), value)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	observability.DraftOperations.WithLabelValues("save", observability.Outcome(err)).Inc()
	if err != nil {
		s.logger.ErrorContext(ctx, "draft save failed", slog.String("draft_id", d.ID), slog.String("error", err.Error()))
		return models.NewStorageUnavailableError(err)
	}
	return nil
}

// Get returns the draft or a NotFound error.
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var d Draft
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(draftKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	observability.DraftOperations.WithLabelValues("get", observability.Outcome(err)).Inc()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.NewNotFoundError("Draft", id)
	}
	if err != nil {
		return nil, models.NewStorageUnavailableError(err)
	}
	return &d, nil
}

// ListByAuthor returns the author's drafts, most recently saved first.
func (s *Store) ListByAuthor(ctx context.Context, author string) ([]Draft, error) {
	var out []Draft
	err := s.scan(ctx, func(d Draft, _ []byte) error {
		if d.Author == author {
			out = append(out, d)
		}
		return nil
	})
	observability.DraftOperations.WithLabelValues("list", observability.Outcome(err)).Inc()
	if err != nil {
		return nil, storageError(err)
	}
	slices.SortStableFunc(out, func(a, b Draft) int {
		return b.SavedAt.Compare(a.SavedAt)
	})
	return out, nil
}

// Delete removes one draft. Deleting a missing draft is a NotFound error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(draftKey(id)); err != nil {
			return err
		}
		return txn.Delete(draftKey(id))
	})
	observability.DraftOperations.WithLabelValues("delete", observability.Outcome(err)).Inc()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.NewNotFoundError("Draft", id)
	}
	if err != nil {
		return models.NewStorageUnavailableError(err)
	}
	return nil
}

// DeleteByAuthor removes every draft owned by author and returns how many
// were removed.
func (s *Store) DeleteByAuthor(ctx context.Context, author string) (int, error) {
	var keys [][]byte
	err := s.scan(ctx, func(d Draft, key []byte) error {
		if d.Author == author {
			keys = append(keys, key)
		}
		return nil
	})
	if err == nil && len(keys) > 0 {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()
		for _, k := range keys {
			if err = wb.Delete(k); err != nil {
				break
			}
		}
		if err == nil {
			err = wb.Flush()
		}
	}
	observability.DraftOperations.WithLabelValues("delete_by_author", observability.Outcome(err)).Inc()
	if err != nil {
		return 0, storageError(err)
	}
	return len(keys), nil
}

// Purge removes every draft saved before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	var keys [][]byte
	err := s.scan(ctx, func(d Draft, key []byte) error {
		if d.SavedAt.Before(cutoff) {
			keys = append(keys, key)
		}
		return nil
	})
	if err == nil {
		err = s.db.Update(func(txn *badger.Txn) error {
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	observability.DraftOperations.WithLabelValues("purge", observability.Outcome(err)).Inc()
	if err != nil {
		return 0, storageError(err)
	}
	return len(keys), nil
}

// scan visits every stored draft. Undecodable values are skipped and logged.
func (s *Store) scan(ctx context.Context, fn func(d Draft, key []byte) error) error {
	prefix := []byte(keyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			var d Draft
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				s.logger.WarnContext(ctx, "skipping undecodable draft",
					slog.String("key", string(bytes.TrimPrefix(key, prefix))),
					slog.String("error", err.Error()))
				continue
			}
			if err := fn(d, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func storageError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return models.NewStorageUnavailableError(err)
}
