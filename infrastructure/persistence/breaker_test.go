package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/infrastructure/persistence/memory"
	pkgerrors "nodestand-backend/pkg/errors"
)

type flakyStore struct {
	*memory.Store
	err error
}

func (f *flakyStore) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Store.LoadNode(ctx, id)
}

func newBreaker(inner ports.GraphStore) *BreakingStore {
	return NewBreakingStore(inner, BreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, zap.NewNop())
}

func TestBreakingStore_DomainErrorsDoNotTrip(t *testing.T) {
	b := newBreaker(memory.NewStore(zap.NewNop()))
	for i := 0; i < 5; i++ {
		_, err := b.LoadNode(context.Background(), valueobjects.NewNodeID())
		assert.True(t, errors.Is(err, pkgerrors.ErrNodeNotFound))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakingStore_TripsOnInfrastructureFailures(t *testing.T) {
	flaky := &flakyStore{Store: memory.NewStore(zap.NewNop()), err: errors.New("connection refused")}
	b := newBreaker(flaky)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.LoadNode(ctx, valueobjects.NewNodeID())
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	flaky.err = nil
	_, err := b.LoadNode(ctx, valueobjects.NewNodeID())
	assert.True(t, errors.Is(err, pkgerrors.ErrStoreUnavailable))
}

func TestBreakingStore_UnitOfWorkPassesThrough(t *testing.T) {
	inner := memory.NewStore(zap.NewNop())
	b := newBreaker(inner)
	ctx := context.Background()

	uow, err := b.Begin(ctx)
	require.NoError(t, err)
	body, err := entities.NewBody(entities.KindAssertion, entities.Content{Title: "t"}, "a")
	require.NoError(t, err)
	node, err := entities.NewNode(body)
	require.NoError(t, err)
	require.NoError(t, uow.SaveNode(ctx, node, aggregates.LinkChange{}))
	require.NoError(t, uow.Commit(ctx))

	rec, err := b.LoadNode(ctx, node.ID())
	require.NoError(t, err)
	assert.Equal(t, node.ID(), rec.Node.ID())

	inner.FailNextCommit(errors.New("boom"))
	uow, err = b.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, errors.Is(uow.Commit(ctx), pkgerrors.ErrTransactionFailed))
}
