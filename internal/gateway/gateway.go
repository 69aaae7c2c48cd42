package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/logging"
	"github.com/kjannette/aete-backend/internal/models"
)

// Every error returned by a Gateway operation matches exactly one of these
// with errors.Is. The underlying store error, if any, stays wrapped.
var (
	ErrNotConnected    = errors.New("persistence gateway not connected")
	ErrNotFound        = docstore.ErrNotFound
	ErrInvalidInput    = errors.New("invalid input")
	ErrOperationFailed = errors.New("remote operation failed")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Opener establishes the store connection.
type Opener func(ctx context.Context) (docstore.Store, error)

// PerformanceHook folds a logged trade into its strategy's aggregates.
// It runs against the gateway's own store.
type PerformanceHook interface {
	UpdatePerformance(ctx context.Context, store docstore.Store, strategyID string, trade models.Document) error
}

type Option func(*Gateway)

func WithPerformanceHook(h PerformanceHook) Option {
	return func(g *Gateway) { g.hook = h }
}

func WithLogger(l *logrus.Entry) Option {
	return func(g *Gateway) { g.log = l }
}

// Gateway is the persistence façade for strategies and trades.
type Gateway struct {
	mu    sync.RWMutex
	state State
	store docstore.Store
	hook  PerformanceHook
	log   *logrus.Entry
}

// Connect opens the store and returns a connected Gateway. A failed open is
// terminal for this attempt: the error is returned and no Gateway is built.
func Connect(ctx context.Context, open Opener, opts ...Option) (*Gateway, error) {
	g := newGateway(opts...)
	g.state = Connecting

	store, err := open(ctx)
	if err != nil {
		g.state = Disconnected
		g.log.WithError(err).Error("Document store initialization failed")
		return nil, fmt.Errorf("connect document store: %w", err)
	}

	g.store = store
	g.state = Connected
	g.log.Info("Document store connected")
	return g, nil
}

// New wraps an already-open store.
func New(store docstore.Store, opts ...Option) *Gateway {
	g := newGateway(opts...)
	g.store = store
	g.state = Connected
	return g
}

func newGateway(opts ...Option) *Gateway {
	g := &Gateway{log: logging.For("gateway")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) IsConnected() bool {
	return g.State() == Connected
}

// Ping checks the store round-trip.
func (g *Gateway) Ping(ctx context.Context) error {
	store, err := g.connected()
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrOperationFailed, err)
	}
	return nil
}

// Close releases the store. Later operations return ErrNotConnected.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Connected {
		return nil
	}
	g.state = Disconnected
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close document store: %w", err)
	}
	g.log.Info("Document store closed")
	return nil
}

func (g *Gateway) connected() (docstore.Store, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != Connected || g.store == nil {
		return nil, ErrNotConnected
	}
	return g.store, nil
}
