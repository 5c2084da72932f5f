package neo4jdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

var errUnitOfWorkClosed = errors.New("unit of work already completed")

type statement struct {
	query  string
	params map[string]any
}

const (
	upsertNode = `
MERGE (n:ArgumentNode {id: $props.id})
SET n += $props`

	upsertBody = `
MERGE (b:ArgumentBody {id: $props.id})
SET b += $props`

	defineNode = `
MATCH (n:ArgumentNode {id: $nodeId}), (b:ArgumentBody {id: $bodyId})
OPTIONAL MATCH (n)-[old:DEFINED_BY]->(other:ArgumentBody)
WHERE other.id <> $bodyId
DELETE old
MERGE (n)-[:DEFINED_BY]->(b)`

	precededBy = `
MATCH (n:ArgumentNode {id: $nodeId}), (p:ArgumentNode {id: $previousId})
MERGE (n)-[:PRECEDED_BY]->(p)`

	unlinkChildren = `
UNWIND $children AS childId
MATCH (n:ArgumentNode {id: $nodeId})-[r:LINKS_TO]->(:ArgumentNode {id: childId})
DELETE r`

	linkChildren = `
UNWIND $children AS childId
MATCH (n:ArgumentNode {id: $nodeId}), (c:ArgumentNode {id: childId})
MERGE (n)-[:LINKS_TO]->(c)`

	deleteNode = `
MATCH (n:ArgumentNode {id: $id})
DETACH DELETE n`

	deleteBody = `
MATCH (b:ArgumentBody {id: $id})
DETACH DELETE b`

	nextBuildVersion = `
MERGE (c:BuildVersionCounter {name: 'build'})
ON CREATE SET c.value = 0
SET c.value = c.value + 1
RETURN c.value - 1 AS version`
)

// unitOfWork buffers statements in phases so every node exists before any
// relationship to it is written. Commit runs them in one write transaction.
type unitOfWork struct {
	*Store
	upserts   []statement
	relations []statement
	deletes   []statement
	done      bool
}

func (u *unitOfWork) SaveNode(_ context.Context, node *entities.Node, links aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	nodeID := node.ID().String()
	bodyID := node.Body().ID().String()

	u.upserts = append(u.upserts,
		statement{upsertNode, map[string]any{"props": nodeProps(node, links.Children)}},
		statement{upsertBody, map[string]any{"props": bodyProps(node.Body())}},
	)
	u.relations = append(u.relations,
		statement{defineNode, map[string]any{"nodeId": nodeID, "bodyId": bodyID}})

	if prev, ok := node.PreviousVersion(); ok {
		u.relations = append(u.relations,
			statement{precededBy, map[string]any{"nodeId": nodeID, "previousId": prev.String()}})
	}
	if len(links.Removed) > 0 {
		u.relations = append(u.relations,
			statement{unlinkChildren, map[string]any{"nodeId": nodeID, "children": idStrings(links.Removed)}})
	}
	if len(links.Added) > 0 {
		u.relations = append(u.relations,
			statement{linkChildren, map[string]any{"nodeId": nodeID, "children": idStrings(links.Added)}})
	}
	return nil
}

// DeleteNode detaches the node, which also drops its LINKS_TO and PRECEDED_BY
// relationships.
func (u *unitOfWork) DeleteNode(_ context.Context, node *entities.Node, _ aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.deletes = append(u.deletes, statement{deleteNode, map[string]any{"id": node.ID().String()}})
	return nil
}

func (u *unitOfWork) DeleteBody(_ context.Context, body *entities.Body) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.deletes = append(u.deletes, statement{deleteBody, map[string]any{"id": body.ID().String()}})
	return nil
}

// NextBuildVersion increments the counter node in its own transaction.
func (u *unitOfWork) NextBuildVersion(ctx context.Context) (int, error) {
	session := u.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, nextBuildVersion, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, ok := rec.Get("version")
		if !ok {
			return nil, fmt.Errorf("counter returned no version")
		}
		return v, nil
	})
	if err != nil {
		return 0, classify("allocate build version", err)
	}
	v, ok := out.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected build version type %T", out)
	}
	return int(v), nil
}

func (u *unitOfWork) statements() []statement {
	all := make([]statement, 0, len(u.upserts)+len(u.relations)+len(u.deletes))
	all = append(all, u.upserts...)
	all = append(all, u.relations...)
	return append(all, u.deletes...)
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.done = true

	stmts := u.statements()
	if len(stmts) == 0 {
		return nil
	}

	session := u.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			res, err := tx.Run(ctx, st.query, st.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		u.logger.Error("Neo4j transaction failed", zap.Int("statements", len(stmts)), zap.Error(err))
		return pkgerrors.ErrTransactionFailed.Clone().WithCause(err)
	}

	u.logger.Debug("Neo4j transaction committed", zap.Int("statements", len(stmts)))
	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	u.done = true
	u.upserts, u.relations, u.deletes = nil, nil, nil
	return nil
}

func idStrings(ids []valueobjects.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
