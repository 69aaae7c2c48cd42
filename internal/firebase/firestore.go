package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"github.com/samber/lo"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/logging"
	"github.com/kjannette/aete-backend/internal/models"
)

// ErrTimestampInArray rejects a write that places docstore.ServerTimestamp
// inside an array.
var ErrTimestampInArray = errors.New("server timestamp inside an array")

type Options struct {
	CredentialsPath string
	ProjectID       string // optional; inferred from the credentials when empty
}

// Store is the Firestore-backed docstore.Store.
type Store struct {
	client *firestore.Client
}

// Open initializes a Firebase app from a service-account file and connects a
// Firestore client. Each call creates its own app; there is no process-wide
// registration to guard.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if _, err := os.Stat(opts.CredentialsPath); err != nil {
		return nil, fmt.Errorf("firebase credentials: %w", err)
	}

	var conf *fb.Config
	if opts.ProjectID != "" {
		conf = &fb.Config{ProjectID: opts.ProjectID}
	}

	app, err := fb.NewApp(ctx, conf, option.WithCredentialsFile(opts.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	logging.For("firebase").Info("Firebase Admin SDK initialized")

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	logging.For("firebase").Info("Firestore client connected")

	return &Store{client: client}, nil
}

// MergeSet passes one merge path per top-level key, so present fields are
// replaced whole and absent fields are kept.
func (s *Store) MergeSet(ctx context.Context, collection, id string, data models.Document) error {
	opt := firestore.MergeAll
	if len(data) > 0 {
		opt = firestore.Merge(lo.Map(lo.Keys(data), func(k string, _ int) firestore.FieldPath {
			return firestore.FieldPath{k}
		})...)
	}
	doc, err := toFirestore(data)
	if err != nil {
		return err
	}
	_, err = s.client.Collection(collection).Doc(id).Set(ctx, doc, opt)
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string) (models.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	if !snap.Exists() {
		return nil, docstore.ErrNotFound
	}
	return models.Document(snap.Data()), nil
}

func (s *Store) Add(ctx context.Context, collection string, data models.Document) (string, error) {
	doc, err := toFirestore(data)
	if err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, doc)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Ping reads at most one strategy document.
func (s *Store) Ping(ctx context.Context) error {
	it := s.client.Collection(models.CollectionStrategies).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// toFirestore copies d, swapping docstore sentinels for their Firestore
// equivalents. Firestore refuses server timestamps inside arrays, so a
// sentinel anywhere under an array is ErrTimestampInArray.
func toFirestore(d models.Document) (map[string]any, error) {
	return convertMap(d, false)
}

func convertMap(d map[string]any, inArray bool) (map[string]any, error) {
	out := make(map[string]any, len(d))
	for k, v := range d {
		c, err := convert(v, inArray)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func convert(v any, inArray bool) (any, error) {
	switch t := v.(type) {
	case models.Document:
		return convertMap(t, inArray)
	case map[string]any:
		return convertMap(t, inArray)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := convert(e, true)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	if docstore.IsServerTimestamp(v) {
		if inArray {
			return nil, ErrTimestampInArray
		}
		return firestore.ServerTimestamp, nil
	}
	return v, nil
}
