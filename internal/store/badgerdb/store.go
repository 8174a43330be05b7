// Package badgerdb is a ChapterStore backed by an embedded Badger database.
package badgerdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
)

// Key layout.
//
//	chapter:<id, zero padded to 20 digits>  -> JSON domain.Chapter
//	meta:next_id                            -> big endian uint64
//	meta:video                              -> JSON domain.VideoAsset
//
// Zero padding makes prefix iteration return chapters in ID order, which is
// insertion order.
const (
	chapterPrefix = "chapter:"
	nextIDKey     = "meta:next_id"
	videoKey      = "meta:video"
)

func chapterKey(id int64) []byte {
	return fmt.Appendf(nil, "%s%020d", chapterPrefix, id)
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Serializes writers so the ID counter is read and advanced by one
	// transaction at a time.
	mu sync.Mutex
}

var _ store.ChapterStore = (*Store)(nil)

// Open opens (or creates) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Chapter edits are small; durability over throughput
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("Badger chapter store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("Closing badger chapter store")
	return s.db.Close()
}

// Seed implements store.ChapterStore.
func (s *Store) Seed(_ context.Context, video *domain.VideoAsset, drafts []domain.ChapterDraft) ([]domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chapters := make([]domain.Chapter, 0, len(drafts))
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, []byte(chapterPrefix)); err != nil {
			return err
		}

		next, err := readNextID(txn)
		if err != nil {
			return err
		}

		for _, d := range drafts {
			ch := domain.Chapter{ID: next, Title: d.Title, Timestamp: d.Timestamp}
			if err := setJSON(txn, chapterKey(ch.ID), ch); err != nil {
				return err
			}
			chapters = append(chapters, ch)
			next++
		}

		if err := writeNextID(txn, next); err != nil {
			return err
		}

		if video == nil {
			return txn.Delete([]byte(videoKey))
		}
		return setJSON(txn, []byte(videoKey), video)
	})
	if err != nil {
		return nil, fmt.Errorf("seed chapters: %w", err)
	}

	return chapters, nil
}

// Create implements store.ChapterStore.
func (s *Store) Create(_ context.Context, draft domain.ChapterDraft) (*domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch domain.Chapter
	err := s.db.Update(func(txn *badger.Txn) error {
		next, err := readNextID(txn)
		if err != nil {
			return err
		}

		ch = domain.Chapter{ID: next, Title: draft.Title, Timestamp: draft.Timestamp}
		if err := setJSON(txn, chapterKey(ch.ID), ch); err != nil {
			return err
		}
		return writeNextID(txn, next+1)
	})
	if err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}

	return &ch, nil
}

// Update implements store.ChapterStore.
func (s *Store) Update(_ context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch domain.Chapter
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, chapterKey(id), &ch); err != nil {
			return err
		}
		patch.Apply(&ch)
		return setJSON(txn, chapterKey(id), ch)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domainerrors.NotFoundf("chapter %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update chapter %d: %w", id, err)
	}

	return &ch, nil
}

// Delete implements store.ChapterStore.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Badger deletes of absent keys succeed, which gives idempotence for free.
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chapterKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete chapter %d: %w", id, err)
	}
	return nil
}

// List implements store.ChapterStore.
func (s *Store) List(_ context.Context) ([]domain.Chapter, error) {
	chapters := []domain.Chapter{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chapterPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ch domain.Chapter
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				return err
			}
			chapters = append(chapters, ch)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	return chapters, nil
}

// ActiveVideo implements store.ChapterStore.
func (s *Store) ActiveVideo(_ context.Context) (*domain.VideoAsset, error) {
	var video domain.VideoAsset
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(videoKey), &video)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domainerrors.NotFound("no video has been uploaded")
	}
	if err != nil {
		return nil, fmt.Errorf("get active video: %w", err)
	}
	return &video, nil
}

// readNextID returns the next unassigned ID. A fresh database starts at 1.
func readNextID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(nextIDKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	var next int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt %s: %d bytes", nextIDKey, len(val))
		}
		next = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return next, err
}

func writeNextID(txn *badger.Txn, next int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	return txn.Set([]byte(nextIDKey), buf)
}

func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

// deletePrefix removes every key under prefix. Keys are collected first because
// deleting while iterating in the same transaction is not supported.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
