package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/kjannette/aete-backend/internal/models"
)

// Badger is an embedded on-disk Store. Each document is one JSON value
// under the key "<collection>/<id>".
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

type BadgerOptions struct {
	Path     string
	InMemory bool // for tests; Path is ignored
}

func OpenBadger(opts BadgerOptions) (*Badger, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("docstore: badger path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (b *Badger) MergeSet(ctx context.Context, collection, id string, data models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := docKey(collection, id)
	patch := ResolveTimestamps(data.Clone(), b.now())

	err := b.db.Update(func(txn *badger.Txn) error {
		existing, err := readDoc(txn, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		val, err := Encode(existing.Merge(patch))
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		return txn.Set(key, val)
	})
	return mapClosed(err)
}

func (b *Badger) Get(ctx context.Context, collection, id string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc models.Document
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = readDoc(txn, docKey(collection, id))
		return err
	})
	if err != nil {
		return nil, mapClosed(err)
	}
	return doc, nil
}

func (b *Badger) Add(ctx context.Context, collection string, data models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	val, err := Encode(ResolveTimestamps(data.Clone(), b.now()))
	if err != nil {
		return "", fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), val)
	})
	if err != nil {
		return "", mapClosed(err)
	}
	return id, nil
}

func (b *Badger) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (b *Badger) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

func mapClosed(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

func docKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func readDoc(txn *badger.Txn, key []byte) (models.Document, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc models.Document
	err = item.Value(func(val []byte) error {
		var derr error
		doc, derr = Decode(val)
		return derr
	})
	return doc, err
}
