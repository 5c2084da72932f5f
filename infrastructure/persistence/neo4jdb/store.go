// Package neo4jdb implements the graph store on Neo4j.
package neo4jdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// Connect opens a driver and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.SocketConnectTimeout = timeout
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

var schemaStatements = []string{
	`CREATE CONSTRAINT argument_node_id IF NOT EXISTS FOR (n:ArgumentNode) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT argument_body_id IF NOT EXISTS FOR (b:ArgumentBody) REQUIRE b.id IS UNIQUE`,
	`CREATE INDEX argument_node_stable IF NOT EXISTS FOR (n:ArgumentNode) ON (n.stableId)`,
}

// Store implements ports.GraphStore on Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewStore creates a store on an open driver.
func NewStore(driver neo4j.DriverWithContext, database string, logger *zap.Logger) *Store {
	return &Store{driver: driver, database: database, logger: logger}
}

// EnsureSchema creates constraints and indexes. Failures are logged; a
// restricted user may not be allowed to manage schema.
func (s *Store) EnsureSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			s.logger.Warn("Neo4j schema statement failed", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// read runs one query in a read transaction and returns the rows as maps.
func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(records))
		for i, r := range records {
			rows[i] = r.AsMap()
		}
		return rows, nil
	})
	if err != nil {
		return nil, classify("read graph", err)
	}
	return out.([]map[string]any), nil
}

func (s *Store) Begin(_ context.Context) (ports.UnitOfWork, error) {
	return &unitOfWork{Store: s}, nil
}

func (s *Store) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	rows, err := s.read(ctx, "MATCH (n:ArgumentNode {id: $id})"+recordProjection,
		map[string]any{"id": id.String()})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NodeNotFound(id.String())
	}
	return toRecord(rows[0])
}

func (s *Store) LoadNodeByStableID(ctx context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error) {
	const query = `
MATCH (n:ArgumentNode {stableId: $stableId})
WITH n ORDER BY CASE WHEN n.buildVersion >= 0 THEN 1 ELSE 0 END DESC, n.buildVersion DESC, n.createdAt DESC
LIMIT 1` + recordProjection

	rows, err := s.read(ctx, query, map[string]any{"stableId": stableID.String()})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NodeNotFound(stableID.String())
	}
	return toRecord(rows[0])
}

func (s *Store) QueryNodes(ctx context.Context, filter ports.NodeFilter) ([]*aggregates.NodeRecord, error) {
	query, params := nodeQuery(filter)
	rows, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]*aggregates.NodeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) QueryBodies(ctx context.Context, filter ports.BodyFilter) ([]*entities.Body, error) {
	query, params := bodyQuery(filter)
	rows, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.Body, 0, len(rows))
	for _, row := range rows {
		props, ok := row["body"].(map[string]any)
		if !ok {
			continue
		}
		b, err := toBody(props)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func classify(operation string, err error) error {
	if pkgerrors.IsDomainError(err) {
		return err
	}
	return pkgerrors.NewInfrastructureError(operation, err).
		WithRetryable(neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err))
}
