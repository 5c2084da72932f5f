package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// maxTransactItems is the TransactWriteItems limit. A published node stages
// its NODE and BODY items, so one unit of work publishes at most 50 nodes.
const maxTransactItems = 100

var errUnitOfWorkClosed = errors.New("unit of work already completed")

// unitOfWork stages puts and deletes keyed by PK/SK. A later write to the same
// key replaces the earlier one, since a transaction may touch an item once.
type unitOfWork struct {
	*Store
	order []string
	items map[string]types.TransactWriteItem
	done  bool
}

func newUnitOfWork(s *Store) *unitOfWork {
	return &unitOfWork{Store: s, items: make(map[string]types.TransactWriteItem)}
}

func (u *unitOfWork) stage(pk, sk string, item types.TransactWriteItem) {
	key := pk + "|" + sk
	if _, ok := u.items[key]; !ok {
		u.order = append(u.order, key)
	}
	u.items[key] = item
}

func (u *unitOfWork) put(pk, sk string, v interface{}) error {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", pk, err)
	}
	u.stage(pk, sk, types.TransactWriteItem{
		Put: &types.Put{TableName: aws.String(u.tableName), Item: av},
	})
	return nil
}

func (u *unitOfWork) delete(pk, sk string) {
	u.stage(pk, sk, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(u.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pk},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		},
	})
}

// SaveNode stages the node row, its body and the reverse links that changed.
// The predecessor's SUBSEQUENT link is written only with the node's first row.
func (u *unitOfWork) SaveNode(_ context.Context, node *entities.Node, links aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	item := toNodeItem(node, links.Children)
	if err := u.put(item.PK, item.SK, item); err != nil {
		return err
	}
	body := toBodyItem(node.Body())
	if err := u.put(body.PK, body.SK, body); err != nil {
		return err
	}

	for _, child := range links.Added {
		if err := u.putLink(child, dependentPrefix, node.ID()); err != nil {
			return err
		}
	}
	for _, child := range links.Removed {
		u.delete(nodePK(child), dependentPrefix+node.ID().String())
	}
	if prev, ok := node.PreviousVersion(); ok && links.Created {
		if err := u.putLink(prev, subsequentPrefix, node.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (u *unitOfWork) putLink(owner valueobjects.NodeID, prefix string, target valueobjects.NodeID) error {
	l := linkItem{PK: nodePK(owner), SK: prefix + target.String(), Target: target.String()}
	return u.put(l.PK, l.SK, l)
}

// DeleteNode stages removal of the node row, the reverse links it owned on
// its children and its entry in the predecessor's successor list.
func (u *unitOfWork) DeleteNode(_ context.Context, node *entities.Node, links aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.delete(nodePK(node.ID()), metaSK)
	for _, child := range links.Removed {
		u.delete(nodePK(child), dependentPrefix+node.ID().String())
	}
	if prev, ok := node.PreviousVersion(); ok {
		u.delete(nodePK(prev), subsequentPrefix+node.ID().String())
	}
	return nil
}

func (u *unitOfWork) DeleteBody(_ context.Context, body *entities.Body) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.delete(bodyPK(body.ID()), metaSK)
	return nil
}

// NextBuildVersion increments the counter item outside the transaction.
// Versions burned by a rolled back unit of work are never reused.
func (u *unitOfWork) NextBuildVersion(ctx context.Context) (int, error) {
	update := expression.Add(expression.Name("Value"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := u.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(u.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: metaSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classify("allocate build version", err)
	}

	n, ok := out.Attributes["Value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("build version counter returned no value")
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid build version %q: %w", n.Value, err)
	}
	return v - 1, nil
}

// Commit sends every staged write in one transaction.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.done = true

	if len(u.order) == 0 {
		return nil
	}
	if len(u.order) > maxTransactItems {
		u.logger.Warn("DynamoDB transaction too large",
			zap.Int("items", len(u.order)),
			zap.Int("limit", maxTransactItems),
		)
		return pkgerrors.ErrTransactionTooLarge.Clone().
			WithDetail("items", len(u.order)).
			WithDetail("limit", maxTransactItems)
	}

	input := &dynamodb.TransactWriteItemsInput{TransactItems: u.transactItems()}
	if _, err := u.client.TransactWriteItems(ctx, input); err != nil {
		u.logger.Error("DynamoDB transaction failed",
			zap.Int("items", len(input.TransactItems)),
			zap.Error(err),
		)
		return classify("commit", err)
	}

	u.logger.Debug("DynamoDB transaction committed", zap.Int("items", len(input.TransactItems)))
	return nil
}

func (u *unitOfWork) transactItems() []types.TransactWriteItem {
	out := make([]types.TransactWriteItem, 0, len(u.order))
	for _, key := range u.order {
		out = append(out, u.items[key])
	}
	return out
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	u.done = true
	u.order = nil
	u.items = nil
	return nil
}
