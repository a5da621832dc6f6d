// Package catalog implements the mutation surface of the studio catalog:
// course and instance lifecycle, the cascade updater, and the two-phase
// deletion coordinator.
//
// Every accepted mutation leaves the touched records in the pending sync
// state and notifies the autosync scheduler. Deletions follow a two-phase
// protocol: the record is first marked pending-delete locally (it stays
// queryable), then the remote deletion is confirmed against the primary
// replica and, only after the primary succeeds, the secondary. The local
// record is physically removed only once both replicas have confirmed.
// A failed remote delete leaves the record pending-delete indefinitely;
// there is no automatic retry.
//
// All mutations and the asynchronous deletion confirmations share one
// bounded worker pool so a burst of operations cannot overwhelm the
// store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/universalyoga/studiosync/internal/replica"
	"github.com/universalyoga/studiosync/internal/store"
)

// poolSize bounds concurrent catalog work, mirroring the store's
// historical fixed pool of four workers.
const poolSize = 4

var (
	// ErrValidation marks malformed input rejected before any store
	// write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation against a record that is not in the
	// store.
	ErrNotFound = errors.New("record not found")
)

// Notifier receives a signal after every accepted mutation. The autosync
// scheduler satisfies this to debounce change-triggered syncs.
type Notifier interface {
	TriggerAutoSync()
}

// Config holds configuration for the catalog service.
type Config struct {
	// Store is the local record store. Required.
	Store *store.DB

	// Primary and Secondary are the two remote replicas, in write order.
	Primary   replica.Replica
	Secondary replica.Replica

	// Notifier is poked after each accepted mutation. Optional.
	Notifier Notifier

	// OnRecord receives one notification per accepted mutation and per
	// confirmed deletion, for dashboards. Kind is "course" or
	// "instance"; action is "created", "updated", or "deleted". Optional.
	OnRecord func(kind string, id int, action, name string)

	// Logger for catalog activity (default: stderr logger).
	Logger *log.Logger
}

// Service coordinates catalog mutations against the store and the two
// replicas.
type Service struct {
	db        *store.DB
	primary   replica.Replica
	secondary replica.Replica
	notifier  Notifier
	onRecord  func(kind string, id int, action, name string)
	logger    *log.Logger

	pool *semaphore.Weighted
	wg   sync.WaitGroup // in-flight deletion confirmations
}

// New creates a catalog service.
func New(config Config) (*Service, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.Primary == nil || config.Secondary == nil {
		return nil, fmt.Errorf("both replicas are required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[catalog] ", log.LstdFlags)
	}

	return &Service{
		db:        config.Store,
		primary:   config.Primary,
		secondary: config.Secondary,
		notifier:  config.Notifier,
		onRecord:  config.OnRecord,
		logger:    logger,
		pool:      semaphore.NewWeighted(poolSize),
	}, nil
}

// Wait blocks until all in-flight deletion confirmations have finished.
// Used by shutdown and tests; new mutations may still be submitted.
func (s *Service) Wait() {
	s.wg.Wait()
}

// acquire claims a worker slot for the duration of one operation.
func (s *Service) acquire(ctx context.Context) (release func(), err error) {
	if err := s.pool.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire worker slot: %w", err)
	}
	return func() { s.pool.Release(1) }, nil
}

// notify pokes the autosync scheduler, if one is attached.
func (s *Service) notify() {
	if s.notifier != nil {
		s.notifier.TriggerAutoSync()
	}
}

// recordEvent announces a catalog change to the dashboard hook, if one
// is attached.
func (s *Service) recordEvent(kind string, id int, action, name string) {
	if s.onRecord != nil {
		s.onRecord(kind, id, action, name)
	}
}
