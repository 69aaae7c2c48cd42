package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjannette/aete-backend/internal/models"
)

// Memory is an in-process Store. Documents are deep-copied on the way in and
// out so callers can never alias stored state.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]models.Document
	closed      bool

	// Now supplies the server timestamp; defaults to time.Now in UTC.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]models.Document),
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) MergeSet(_ context.Context, collection, id string, data models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	patch := ResolveTimestamps(data.Clone(), m.Now())
	coll := m.collection(collection)
	coll[id] = coll[id].Merge(patch)
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) Add(_ context.Context, collection string, data models.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	m.collection(collection)[id] = ResolveTimestamps(data.Clone(), m.Now())
	return id, nil
}

// List returns a copy of every document in a collection, keyed by id.
func (m *Memory) List(collection string) map[string]models.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.Document, len(m.collections[collection]))
	for id, doc := range m.collections[collection] {
		out[id] = doc.Clone()
	}
	return out
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// collection must be called with mu held.
func (m *Memory) collection(name string) map[string]models.Document {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string]models.Document)
		m.collections[name] = coll
	}
	return coll
}
