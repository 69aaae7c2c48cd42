package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kjannette/aete-backend/internal/models"
)

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("document store closed")
)

// Store is a minimal document database: keyed merge-upserts, point reads and
// appends with store-generated keys.
type Store interface {
	// MergeSet creates collection/id or overwrites the top-level fields present
	// in data, leaving every other existing field untouched.
	MergeSet(ctx context.Context, collection, id string, data models.Document) error

	// Get returns the document, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (models.Document, error)

	// Add appends data under a new store-generated key and returns the key.
	Add(ctx context.Context, collection string, data models.Document) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "<server timestamp>" }

// ServerTimestamp is a field value that the store replaces with its own
// write time.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveTimestamps replaces every ServerTimestamp sentinel in d, including
// inside nested maps, with now. d is modified in place.
func ResolveTimestamps(d models.Document, now time.Time) models.Document {
	for k, v := range d {
		d[k] = resolve(v, now)
	}
	return d
}

func resolve(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now
	case models.Document:
		return ResolveTimestamps(t, now)
	case map[string]any:
		return map[string]any(ResolveTimestamps(models.Document(t), now))
	case []any:
		for i, e := range t {
			t[i] = resolve(e, now)
		}
		return t
	}
	return v
}

// codec keeps numbers as json.Number so integers survive a round-trip.
var codec = sonic.Config{UseNumber: true}.Froze()

// Encode serializes a document for the JSON-backed stores.
func Encode(d models.Document) ([]byte, error) {
	return codec.Marshal(d)
}

// Decode is the inverse of Encode. Integral numbers come back as int64.
func Decode(b []byte) (models.Document, error) {
	var d models.Document
	if err := codec.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if d == nil {
		d = models.Document{}
	}
	models.NormalizeNumbers(d)
	return d, nil
}
