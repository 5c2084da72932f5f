package dynamodb

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// fakeClient keeps items by PK|SK. Query matches the partition key named by
// the first expression value; it does not evaluate filters.
type fakeClient struct {
	items     map[string]map[string]types.AttributeValue
	counter   int
	transacts []*dynamodb.TransactWriteItemsInput
	failWith  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	return stringAttr(item, "PK") + "|" + stringAttr(item, "SK")
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var want string
	for _, v := range in.ExpressionAttributeValues {
		want = v.(*types.AttributeValueMemberS).Value
	}
	attr, sortAttr := "PK", "SK"
	if in.IndexName != nil {
		attr, sortAttr = "GSI1PK", "GSI1SK"
	}

	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, attr) == want {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		less := stringAttr(out[i], sortAttr) < stringAttr(out[j], sortAttr)
		if in.ScanIndexForward != nil && !*in.ScanIndexForward {
			return !less
		}
		return less
	})
	if in.Limit != nil && len(out) > int(*in.Limit) {
		out = out[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeClient) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		out = append(out, item)
	}
	return &dynamodb.ScanOutput{Items: out}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, _ *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.counter++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"Value": &types.AttributeValueMemberN{Value: strconv.Itoa(f.counter)},
	}}, nil
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transacts = append(f.transacts, in)
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[keyOf(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, keyOf(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func newTestNode(t *testing.T, kind entities.Kind, title string) *entities.Node {
	t.Helper()
	content := entities.Content{Title: title, Qualifier: "q", Text: "see {{[abc]here}}"}
	if kind == entities.KindSource {
		content = entities.Content{Title: title, URL: "https://example.org"}
	}
	body, err := entities.NewBody(kind, content, "author-1")
	require.NoError(t, err)
	n, err := entities.NewNode(body)
	require.NoError(t, err)
	return n
}

func TestItems_NodeRoundTrip(t *testing.T) {
	n := newTestNode(t, entities.KindAssertion, "Claim")
	child := valueobjects.NewNodeID()
	item := toNodeItem(n, []valueobjects.NodeID{child})
	assert.Equal(t, "NODE#"+n.ID().String(), item.PK)
	assert.Equal(t, "LINEAGE#"+n.StableID().String(), item.GSI1PK)
	assert.Contains(t, item.GSI1SK, "A#DRAFT#")

	bi := toBodyItem(n.Body())
	assert.Equal(t, "claim", bi.TitleLower)
	body, err := bi.toBody()
	require.NoError(t, err)
	assert.Equal(t, n.Body().Content(), body.Content())
	assert.Equal(t, n.Body().MajorVersion(), body.MajorVersion())

	parent := valueobjects.NewNodeID()
	rec, err := item.toRecord(body, []linkItem{{SK: dependentPrefix + parent.String(), Target: parent.String()}})
	require.NoError(t, err)
	assert.Equal(t, n.ID(), rec.Node.ID())
	assert.Equal(t, []valueobjects.NodeID{child}, rec.Children)
	assert.Equal(t, []valueobjects.NodeID{parent}, rec.Dependents)
	assert.True(t, n.CreatedAt().Equal(rec.Node.CreatedAt()))
}

func TestItems_LineageSortKeys(t *testing.T) {
	n := newTestNode(t, entities.KindAssertion, "Claim")
	require.NoError(t, n.Finalize(42))
	assert.Equal(t, "V#0000000042", toNodeItem(n, nil).GSI1SK)
	assert.Greater(t, lineageSK(1, n.CreatedAt()), lineageSK(-1, n.CreatedAt()),
		"published versions sort after drafts")
}

func TestStore_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())

	src := newTestNode(t, entities.KindSource, "Report")
	interp := newTestNode(t, entities.KindInterpretation, "Reading")

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.SaveNode(ctx, src, aggregates.LinkChange{}))
	require.NoError(t, uow.SaveNode(ctx, interp, aggregates.LinkChange{
		Children: []valueobjects.NodeID{src.ID()},
		Added:    []valueobjects.NodeID{src.ID()},
	}))
	require.NoError(t, uow.Commit(ctx))
	require.Len(t, client.transacts, 1)
	assert.Len(t, client.transacts[0].TransactItems, 5)

	rec, err := s.LoadNode(ctx, src.ID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{interp.ID()}, rec.Dependents)
	assert.Equal(t, "Report", rec.Node.Body().Title())

	rec, err = s.LoadNodeByStableID(ctx, interp.StableID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{src.ID()}, rec.Children)

	_, err = s.LoadNode(ctx, valueobjects.NewNodeID())
	assert.True(t, errors.Is(err, pkgerrors.ErrNodeNotFound))
}

func TestStore_DeleteScrubsReverseLinks(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())

	published := newTestNode(t, entities.KindAssertion, "v1")
	require.NoError(t, published.Finalize(0))
	draft, err := published.CreateNewDraft("author-1")
	require.NoError(t, err)
	child := newTestNode(t, entities.KindInterpretation, "child")

	uow, _ := s.Begin(ctx)
	require.NoError(t, uow.SaveNode(ctx, published, aggregates.LinkChange{}))
	require.NoError(t, uow.SaveNode(ctx, child, aggregates.LinkChange{}))
	require.NoError(t, uow.SaveNode(ctx, draft, aggregates.LinkChange{
		Children: []valueobjects.NodeID{child.ID()},
		Added:    []valueobjects.NodeID{child.ID()},
		Created:  true,
	}))
	require.NoError(t, uow.Commit(ctx))

	rec, err := s.LoadNode(ctx, published.ID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{draft.ID()}, rec.SubsequentVersions)

	uow, _ = s.Begin(ctx)
	require.NoError(t, uow.DeleteNode(ctx, draft, aggregates.LinkChange{Removed: []valueobjects.NodeID{child.ID()}}))
	require.NoError(t, uow.DeleteBody(ctx, draft.Body()))
	require.NoError(t, uow.Commit(ctx))

	rec, err = s.LoadNode(ctx, published.ID())
	require.NoError(t, err)
	assert.Empty(t, rec.SubsequentVersions)
	rec, err = s.LoadNode(ctx, child.ID())
	require.NoError(t, err)
	assert.Empty(t, rec.Dependents)
	_, err = s.LoadNode(ctx, draft.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUnitOfWork_DedupsKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())
	n := newTestNode(t, entities.KindAssertion, "x")

	uow, _ := s.Begin(ctx)
	require.NoError(t, uow.SaveNode(ctx, n, aggregates.LinkChange{}))
	require.NoError(t, uow.SaveNode(ctx, n, aggregates.LinkChange{}))
	require.NoError(t, uow.Commit(ctx))
	assert.Len(t, client.transacts[0].TransactItems, 2)
	assert.Error(t, uow.Commit(ctx))
}

func TestUnitOfWork_SubsequentLinkOnFirstWriteOnly(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())

	published := newTestNode(t, entities.KindAssertion, "v1")
	require.NoError(t, published.Finalize(0))
	draft, err := published.CreateNewDraft("author-1")
	require.NoError(t, err)

	uow, _ := s.Begin(ctx)
	require.NoError(t, uow.SaveNode(ctx, draft, aggregates.LinkChange{Created: true}))
	require.NoError(t, uow.Commit(ctx))
	assert.Len(t, client.transacts[0].TransactItems, 3)

	require.NoError(t, draft.Finalize(1))
	uow, _ = s.Begin(ctx)
	require.NoError(t, uow.SaveNode(ctx, draft, aggregates.LinkChange{}))
	require.NoError(t, uow.Commit(ctx))
	assert.Len(t, client.transacts[1].TransactItems, 2, "publishing rewrites only the node and body")
}

func TestUnitOfWork_TransactionLimit(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())

	save := func(count int) error {
		uow, err := s.Begin(ctx)
		require.NoError(t, err)
		for i := 0; i < count; i++ {
			n := newTestNode(t, entities.KindInterpretation, "i"+strconv.Itoa(i))
			require.NoError(t, n.Finalize(0))
			require.NoError(t, uow.SaveNode(ctx, n, aggregates.LinkChange{}))
		}
		return uow.Commit(ctx)
	}

	require.NoError(t, save(maxTransactItems/2))
	require.Len(t, client.transacts, 1)

	err := save(maxTransactItems/2 + 1)
	require.True(t, errors.Is(err, pkgerrors.ErrTransactionTooLarge))
	de, ok := pkgerrors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, de.StatusCode)
	assert.Equal(t, maxTransactItems+2, de.Details["items"])
	assert.Len(t, client.transacts, 1, "nothing is sent")
}

func TestUnitOfWork_NextBuildVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeClient(), "nodestand", "GSI1", zap.NewNop())
	uow, _ := s.Begin(ctx)
	first, err := uow.NextBuildVersion(ctx)
	require.NoError(t, err)
	second, err := uow.NextBuildVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestUnitOfWork_CancelledTransaction(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.failWith = &types.TransactionCanceledException{
		Message: aws.String("cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
	s := NewStore(client, "nodestand", "GSI1", zap.NewNop())

	uow, _ := s.Begin(ctx)
	require.NoError(t, uow.SaveNode(ctx, newTestNode(t, entities.KindAssertion, "x"), aggregates.LinkChange{}))
	err := uow.Commit(ctx)
	assert.True(t, errors.Is(err, pkgerrors.ErrTransactionFailed))
	assert.Empty(t, client.items)
}

func TestClassify(t *testing.T) {
	throttled := classify("scan", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"})
	de, ok := pkgerrors.AsDomainError(throttled)
	require.True(t, ok)
	assert.True(t, de.Retryable)
	assert.True(t, errors.Is(throttled, pkgerrors.ErrStoreUnavailable))

	other := classify("scan", errors.New("dial tcp: refused"))
	assert.True(t, errors.Is(other, pkgerrors.ErrStoreUnavailable))
}

func TestFilterExpressions(t *testing.T) {
	expr, err := nodeFilterExpression(ports.NodeFilter{
		StableIDPrefix: "abc",
		AuthorIDs:      []string{"a1", "a2"},
		Status:         ports.StatusDraft,
	})
	require.NoError(t, err)
	require.NotNil(t, expr.Filter())
	names := map[string]bool{}
	for _, n := range expr.Names() {
		names[n] = true
	}
	assert.True(t, names["StableID"])
	assert.True(t, names["AuthorID"])
	assert.True(t, names["BuildVersion"])

	expr, err = bodyFilterExpression(ports.BodyFilter{TitleContains: "Tax", ViewerAuthorIDs: []string{"a1"}})
	require.NoError(t, err)
	found := false
	for _, v := range expr.Values() {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == "tax" {
			found = true
		}
	}
	assert.True(t, found, "title search is lower-cased")
}
