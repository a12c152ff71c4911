package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds graph database connection settings.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	// Database selects the target database; empty uses the server default.
	Database string
}

// Neo4jWriter implements Writer against a Neo4j server using managed write
// transactions. All mutations are parameterized Cypher; labels and
// relationship types are validated against the worker's mandate before being
// interpolated.
type Neo4jWriter struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jWriter connects to the graph database and verifies connectivity.
func NewNeo4jWriter(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jWriter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Neo4jWriter{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// Ping verifies connectivity to the graph database. Used by readiness checks.
func (w *Neo4jWriter) Ping(ctx context.Context) error {
	return w.driver.VerifyConnectivity(ctx)
}

// Close releases the underlying driver and its connection pool.
func (w *Neo4jWriter) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

// write runs a single Cypher statement inside a managed write transaction.
func (w *Neo4jWriter) write(ctx context.Context, cypher string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: w.database,
	})
	defer session.Close(ctx) //nolint:errcheck

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// UpsertNode merges a node by business key and overlays the given properties.
func (w *Neo4jWriter) UpsertNode(ctx context.Context, label, key string, props Props) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	cypher := fmt.Sprintf("MERGE (n:%s {id: $key}) SET n += $props", label)
	if props == nil {
		props = Props{}
	}

	return w.write(ctx, cypher, map[string]any{"key": key, "props": map[string]any(props)})
}

// UpsertRelationship merges both endpoint nodes by key and the relationship
// between them, overlaying the relationship properties.
func (w *Neo4jWriter) UpsertRelationship(
	ctx context.Context,
	relType, fromLabel, fromKey, toLabel, toKey string,
	props Props,
) error {
	if err := ValidateRelType(relType); err != nil {
		return err
	}
	if err := ValidateLabel(fromLabel); err != nil {
		return err
	}
	if err := ValidateLabel(toLabel); err != nil {
		return err
	}

	cypher := fmt.Sprintf(`MERGE (a:%s {id: $fromKey})
MERGE (b:%s {id: $toKey})
MERGE (a)-[r:%s]->(b)
SET r += $props`, fromLabel, toLabel, relType)
	if props == nil {
		props = Props{}
	}

	return w.write(ctx, cypher, map[string]any{
		"fromKey": fromKey,
		"toKey":   toKey,
		"props":   map[string]any(props),
	})
}

// ReplaceRelationshipSet removes every relType relationship from the source
// node to toLabel nodes and recreates exactly the given target set in one
// statement. Target nodes are merged, never deleted: reference data is shared
// with other aggregates.
func (w *Neo4jWriter) ReplaceRelationshipSet(
	ctx context.Context,
	relType, fromLabel, fromKey, toLabel string,
	targets []RelTarget,
) error {
	if err := ValidateRelType(relType); err != nil {
		return err
	}
	if err := ValidateLabel(fromLabel); err != nil {
		return err
	}
	if err := ValidateLabel(toLabel); err != nil {
		return err
	}

	cypher := fmt.Sprintf(`MERGE (a:%s {id: $fromKey})
WITH a
OPTIONAL MATCH (a)-[old:%s]->(:%s)
DELETE old
WITH DISTINCT a
UNWIND $targets AS t
MERGE (b:%s {id: t.key})
SET b += t.node
MERGE (a)-[r:%s]->(b)
SET r = t.rel`, fromLabel, relType, toLabel, toLabel, relType)

	encoded := make([]map[string]any, 0, len(targets))
	for _, target := range targets {
		node := target.NodeProps
		if node == nil {
			node = Props{}
		}
		rel := target.RelProps
		if rel == nil {
			rel = Props{}
		}
		encoded = append(encoded, map[string]any{
			"key":  target.Key,
			"node": map[string]any(node),
			"rel":  map[string]any(rel),
		})
	}

	return w.write(ctx, cypher, map[string]any{"fromKey": fromKey, "targets": encoded})
}

// DetachDeleteNode removes the node and all incident relationships; no-op when
// the node does not exist.
func (w *Neo4jWriter) DetachDeleteNode(ctx context.Context, label, key string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	cypher := fmt.Sprintf("MATCH (n:%s {id: $key}) DETACH DELETE n", label)
	return w.write(ctx, cypher, map[string]any{"key": key})
}
