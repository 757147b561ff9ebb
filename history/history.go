// Package history persists conversation transcripts in an embedded
// BadgerDB.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"go.aimuz.me/prakriti/internal/types"
)

// ErrPersistence wraps every storage failure returned by Store.
var ErrPersistence = types.ErrPersistence

const keyPrefix = "msg/"

// Options configures a Store.
type Options struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool
}

// Store appends and loads messages keyed by conversation.
//
// Keys have the form msg/<conversation>/<unix-nanos>/<id>. The timestamp is
// zero-padded so lexical key order is chronological order.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, opts.Dir, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func prefix(conversationID string) []byte {
	return []byte(keyPrefix + conversationID + "/")
}

func messageKey(conversationID string, at time.Time, id string) []byte {
	return fmt.Appendf(nil, "%s%s/%020d/%s", keyPrefix, conversationID, at.UnixNano(), id)
}

// Append stores m under conversationID. Missing IDs and timestamps are
// filled in.
func (s *Store) Append(_ context.Context, conversationID string, m types.Message) error {
	if conversationID == "" || strings.Contains(conversationID, "/") {
		return fmt.Errorf("%w: invalid conversation id %q", ErrPersistence, conversationID)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}

	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encode message: %v", ErrPersistence, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(conversationID, m.CreatedAt, m.ID), val)
	})
	if err != nil {
		return fmt.Errorf("%w: append: %v", ErrPersistence, err)
	}
	return nil
}

// Load returns the messages of conversationID, oldest first. An unknown
// conversation yields an empty slice.
func (s *Store) Load(_ context.Context, conversationID string) ([]types.Message, error) {
	p := prefix(conversationID)
	var msgs []types.Message

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var m types.Message
			if err := json.Unmarshal(val, &m); err != nil {
				slog.Warn("skipping corrupt history entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}
	return msgs, nil
}

// Conversations lists the conversation IDs that have at least one message.
func (s *Store) Conversations(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(iterOpts.Prefix); it.ValidForPrefix(iterOpts.Prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			id, _, ok := strings.Cut(rest, "/")
			if !ok {
				continue
			}
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", ErrPersistence, err)
	}
	return ids, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// slogLogger routes badger's warnings and errors to slog and drops the rest.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...interface{})   { slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...))) }
func (slogLogger) Warningf(f string, v ...interface{}) { slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...))) }
func (slogLogger) Infof(string, ...interface{})        {}
func (slogLogger) Debugf(string, ...interface{})       {}
