// Package dynamodb implements the graph store on a single DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements ports.GraphStore on DynamoDB.
type Store struct {
	client       Client
	tableName    string
	lineageIndex string
	logger       *zap.Logger
}

// NewStore creates a new DynamoDB graph store
func NewStore(client Client, tableName, lineageIndex string, logger *zap.Logger) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		lineageIndex: lineageIndex,
		logger:       logger,
	}
}

// Begin starts a unit of work whose writes go out in one TransactWriteItems call.
func (s *Store) Begin(_ context.Context) (ports.UnitOfWork, error) {
	return newUnitOfWork(s), nil
}

// LoadNode reads the node partition (row plus reverse links) and its body.
func (s *Store) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(nodePK(id)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var (
		meta  *nodeItem
		links []linkItem
	)
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("load node", err)
		}
		for _, raw := range page.Items {
			sk := stringAttr(raw, "SK")
			if sk == metaSK {
				var item nodeItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, fmt.Errorf("failed to unmarshal node: %w", err)
				}
				meta = &item
				continue
			}
			var link linkItem
			if err := attributevalue.UnmarshalMap(raw, &link); err != nil {
				return nil, fmt.Errorf("failed to unmarshal link: %w", err)
			}
			links = append(links, link)
		}
	}
	if meta == nil {
		return nil, pkgerrors.NodeNotFound(id.String())
	}

	body, err := s.loadBody(ctx, meta.BodyID)
	if err != nil {
		return nil, err
	}
	return meta.toRecord(body, links)
}

func (s *Store) loadBody(ctx context.Context, bodyID string) (*entities.Body, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "BODY#" + bodyID},
			"SK": &types.AttributeValueMemberS{Value: metaSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("load body", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.ResourceNotFound("body", bodyID)
	}
	var item bodyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal body: %w", err)
	}
	return item.toBody()
}

// LoadNodeByStableID queries the lineage index newest first.
func (s *Store) LoadNodeByStableID(ctx context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error) {
	keyEx := expression.Key("GSI1PK").Equal(expression.Value(lineagePK(stableID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.lineageIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, classify("load lineage", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NodeNotFound(stableID.String())
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	id, err := valueobjects.NewNodeIDFromString(item.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %q: %w", item.NodeID, err)
	}
	return s.LoadNode(ctx, id)
}

// QueryNodes scans node rows with the filter pushed down where DynamoDB can
// evaluate it. RootsOnly needs each candidate's reverse links and is applied
// after loading.
func (s *Store) QueryNodes(ctx context.Context, filter ports.NodeFilter) ([]*aggregates.NodeRecord, error) {
	expr, err := nodeFilterExpression(filter)
	if err != nil {
		return nil, err
	}

	var out []*aggregates.NodeRecord
	err = s.scan(ctx, expr, func(raw map[string]types.AttributeValue) (bool, error) {
		var item nodeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return false, fmt.Errorf("failed to unmarshal node: %w", err)
		}
		id, err := valueobjects.NewNodeIDFromString(item.NodeID)
		if err != nil {
			return false, fmt.Errorf("invalid node id %q: %w", item.NodeID, err)
		}
		rec, err := s.LoadNode(ctx, id)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		if filter.RootsOnly && len(rec.Dependents) > 0 {
			return true, nil
		}
		out = append(out, rec)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	return out, err
}

// QueryBodies scans body rows by lower-cased title.
func (s *Store) QueryBodies(ctx context.Context, filter ports.BodyFilter) ([]*entities.Body, error) {
	expr, err := bodyFilterExpression(filter)
	if err != nil {
		return nil, err
	}

	var out []*entities.Body
	err = s.scan(ctx, expr, func(raw map[string]types.AttributeValue) (bool, error) {
		var item bodyItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return false, fmt.Errorf("failed to unmarshal body: %w", err)
		}
		body, err := item.toBody()
		if err != nil {
			return false, err
		}
		out = append(out, body)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	return out, err
}

// scan pages through the table until visit returns false.
func (s *Store) scan(ctx context.Context, expr expression.Expression, visit func(map[string]types.AttributeValue) (bool, error)) error {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify("scan", err)
		}
		for _, raw := range page.Items {
			more, err := visit(raw)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
	}
	return nil
}

func nodeFilterExpression(filter ports.NodeFilter) (expression.Expression, error) {
	cond := expression.Name("EntityType").Equal(expression.Value(entityNode))
	if filter.StableIDPrefix != "" {
		cond = cond.And(expression.Name("StableID").BeginsWith(filter.StableIDPrefix))
	}
	if len(filter.AuthorIDs) > 0 {
		cond = cond.And(inStrings("AuthorID", filter.AuthorIDs))
	}
	switch filter.Status {
	case ports.StatusDraft:
		cond = cond.And(expression.Name("BuildVersion").LessThan(expression.Value(0)))
	case ports.StatusPublished:
		cond = cond.And(expression.Name("BuildVersion").GreaterThanEqual(expression.Value(0)))
	}
	if !filter.MajorVersion.IsZero() {
		cond = cond.And(expression.Name("MajorVersion").Equal(expression.Value(filter.MajorVersion.String())))
	}

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build node filter: %w", err)
	}
	return expr, nil
}

func bodyFilterExpression(filter ports.BodyFilter) (expression.Expression, error) {
	cond := expression.Name("EntityType").Equal(expression.Value(entityBody))
	if filter.TitleContains != "" {
		cond = cond.And(expression.Name("TitleLower").Contains(strings.ToLower(filter.TitleContains)))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = k.String()
		}
		cond = cond.And(inStrings("Kind", kinds))
	}

	visible := expression.Name("Public").Equal(expression.Value(true))
	if len(filter.ViewerAuthorIDs) > 0 {
		visible = visible.Or(inStrings("AuthorID", filter.ViewerAuthorIDs))
	}
	cond = cond.And(visible)

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build body filter: %w", err)
	}
	return expr, nil
}

func inStrings(name string, values []string) expression.ConditionBuilder {
	operands := make([]expression.OperandBuilder, 0, len(values)-1)
	for _, v := range values[1:] {
		operands = append(operands, expression.Value(v))
	}
	return expression.Name(name).In(expression.Value(values[0]), operands...)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
