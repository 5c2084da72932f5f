// Package persistence holds store-agnostic decorators for the graph store.
package persistence

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakingStore guards every round trip to the wrapped store with a circuit
// breaker. Domain outcomes such as NodeNotFound do not count as failures.
type BreakingStore struct {
	inner  ports.GraphStore
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakingStore wraps inner.
func NewBreakingStore(inner ports.GraphStore, cfg BreakerConfig, logger *zap.Logger) *BreakingStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Graph store circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})
	return &BreakingStore{inner: inner, cb: cb, logger: logger}
}

func isSuccessful(err error) bool {
	if err == nil || pkgerrors.IsDomainError(err) {
		return true
	}
	return stderrors.Is(err, context.Canceled)
}

// State reports the breaker state.
func (b *BreakingStore) State() gobreaker.State {
	return b.cb.State()
}

func guard[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, pkgerrors.ErrStoreUnavailable.Clone().WithCause(err)
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *BreakingStore) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	return guard(b.cb, func() (*aggregates.NodeRecord, error) { return b.inner.LoadNode(ctx, id) })
}

func (b *BreakingStore) LoadNodeByStableID(ctx context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error) {
	return guard(b.cb, func() (*aggregates.NodeRecord, error) { return b.inner.LoadNodeByStableID(ctx, stableID) })
}

func (b *BreakingStore) QueryNodes(ctx context.Context, filter ports.NodeFilter) ([]*aggregates.NodeRecord, error) {
	return guard(b.cb, func() ([]*aggregates.NodeRecord, error) { return b.inner.QueryNodes(ctx, filter) })
}

func (b *BreakingStore) QueryBodies(ctx context.Context, filter ports.BodyFilter) ([]*entities.Body, error) {
	return guard(b.cb, func() ([]*entities.Body, error) { return b.inner.QueryBodies(ctx, filter) })
}

// Begin starts a guarded unit of work.
func (b *BreakingStore) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	uow, err := guard(b.cb, func() (ports.UnitOfWork, error) { return b.inner.Begin(ctx) })
	if err != nil {
		return nil, err
	}
	return &breakingUnitOfWork{UnitOfWork: uow, store: b}, nil
}

// breakingUnitOfWork guards the calls that reach the backend. Staging calls
// are passed through.
type breakingUnitOfWork struct {
	ports.UnitOfWork
	store *BreakingStore
}

func (u *breakingUnitOfWork) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	return guard(u.store.cb, func() (*aggregates.NodeRecord, error) { return u.UnitOfWork.LoadNode(ctx, id) })
}

func (u *breakingUnitOfWork) NextBuildVersion(ctx context.Context) (int, error) {
	return guard(u.store.cb, func() (int, error) { return u.UnitOfWork.NextBuildVersion(ctx) })
}

func (u *breakingUnitOfWork) Commit(ctx context.Context) error {
	_, err := guard(u.store.cb, func() (struct{}, error) { return struct{}{}, u.UnitOfWork.Commit(ctx) })
	return err
}
