// Package graph wraps the graph database driver and enforces tenant
// isolation on every query it issues. Callers never reach the database
// except through this adapter, so a caller-supplied query cannot read
// or write across projects.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

const (
	// DocumentLabel is the node label for stored documents.
	DocumentLabel = "Document"

	// vectorIndexName is the vector index over document embeddings.
	vectorIndexName = "document_embeddings"

	// maxNeighborDepth bounds neighborhood expansion.
	maxNeighborDepth = 3

	// vectorOverfetch compensates for tenant post-filtering: the index
	// query returns the top hits across all projects, so more candidates
	// are requested than the caller's limit.
	vectorOverfetch = 4
)

// Adapter wraps the graph database behind tenant-scoped operations.
type Adapter struct {
	runner   runner
	readOnly bool
	metrics  *Metrics
	logger   *zap.Logger
}

// NewAdapter connects to the configured graph database.
func NewAdapter(cfg config.GraphConfig, reg prometheus.Registerer, logger *zap.Logger) (*Adapter, error) {
	r, err := newNeo4jRunner(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to graph database: %w", err)
	}
	return newAdapter(r, cfg.ReadOnly, reg, logger), nil
}

func newAdapter(r runner, readOnly bool, reg prometheus.Registerer, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		runner:   r,
		readOnly: readOnly,
		metrics:  NewMetrics(reg),
		logger:   logger.Named("graph"),
	}
}

// Ping verifies database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.runner.VerifyConnectivity(ctx); err != nil {
		return errs.Dependency("graph", nil, err)
	}
	return nil
}

// Close releases the driver.
func (a *Adapter) Close(ctx context.Context) error {
	return a.runner.Close(ctx)
}

// EnsureIndexes creates the vector and project indexes if absent.
// Idempotent; skipped on read-only instances.
func (a *Adapter) EnsureIndexes(ctx context.Context, dimension int) error {
	if a.readOnly {
		return nil
	}
	return a.runner.Write(ctx, func(tx Tx) error {
		vectorIndex := fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS "+
				"FOR (d:%s) ON d.embedding "+
				"OPTIONS {indexConfig: {`vector.dimensions`: $dimension, `vector.similarity_function`: 'cosine'}}",
			vectorIndexName, DocumentLabel)
		if _, err := tx.Run(ctx, vectorIndex, map[string]any{"dimension": dimension}); err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}

		projectIndex := fmt.Sprintf(
			`CREATE INDEX document_project IF NOT EXISTS FOR (d:%s) ON (d.project_id)`,
			DocumentLabel)
		if _, err := tx.Run(ctx, projectIndex, nil); err != nil {
			return fmt.Errorf("creating project index: %w", err)
		}
		return nil
	})
}

// RunQuery executes caller-supplied Cypher with the tenant filter
// injected by the adapter. The query must reference $project_id, whose
// value is forcibly set from the request scope (any caller-supplied
// value is overwritten). Every node in the result set is verified
// against that project and relationship endpoints are checked with a
// follow-up query; for mutations the check runs inside the same
// transaction, so a violation rolls the mutation back. A record that
// would leak another tenant's data fails the query; nothing is
// silently dropped.
func (a *Adapter) RunQuery(ctx context.Context, cypher string, params map[string]any, projectID string) (*QueryResults, error) {
	if projectID == "" {
		return nil, errs.Validation("project_id is required")
	}
	if err := checkMutation(cypher, a.readOnly); err != nil {
		return nil, err
	}
	if err := checkTenantReference(cypher); err != nil {
		return nil, err
	}

	scoped := make(map[string]any, len(params)+1)
	for k, v := range params {
		scoped[k] = v
	}
	scoped["project_id"] = projectID

	start := time.Now()
	var records []map[string]any
	var err error
	if mutationPattern.MatchString(cypher) {
		err = a.runner.Write(ctx, func(tx Tx) error {
			raw, txErr := tx.Run(ctx, cypher, scoped)
			if txErr != nil {
				return errs.Dependency("graph", nil, txErr)
			}
			records, txErr = a.sanitizeRecords(raw, projectID, func(c string, p map[string]any) ([]map[string]any, error) {
				return tx.Run(ctx, c, p)
			})
			return txErr
		})
	} else {
		var raw []map[string]any
		raw, err = a.runner.Read(ctx, cypher, scoped)
		if err != nil {
			err = errs.Dependency("graph", nil, err)
		} else {
			records, err = a.sanitizeRecords(raw, projectID, func(c string, p map[string]any) ([]map[string]any, error) {
				return a.runner.Read(ctx, c, p)
			})
		}
	}
	elapsed := time.Since(start)
	a.metrics.recordQuery("run_query", elapsed, err)
	if err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, errs.Dependency("graph", nil, err)
	}

	return &QueryResults{
		Records:     records,
		QueryTimeMS: elapsed.Milliseconds(),
	}, nil
}

// sanitizeRecords converts driver records to JSON-friendly shapes,
// failing closed on nodes from another project. Relationship endpoints
// cannot be checked locally, so their element ids are collected and
// verified with one extra query through run.
func (a *Adapter) sanitizeRecords(raw []map[string]any, projectID string, run func(cypher string, params map[string]any) ([]map[string]any, error)) ([]map[string]any, error) {
	endpoints := make(map[string]struct{})
	records := make([]map[string]any, len(raw))
	for i, rec := range raw {
		sanitized := make(map[string]any, len(rec))
		for key, value := range rec {
			converted, err := convertScoped(value, projectID, endpoints)
			if err != nil {
				return nil, err
			}
			sanitized[key] = converted
		}
		records[i] = sanitized
	}
	if len(endpoints) == 0 {
		return records, nil
	}

	ids := make([]string, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}
	rows, err := run(
		`MATCH (n) WHERE elementId(n) IN $element_ids
		 AND (n.project_id IS NULL OR n.project_id <> $project_id)
		 RETURN count(n) AS foreign`,
		map[string]any{"element_ids": ids, "project_id": projectID})
	if err != nil {
		return nil, errs.Dependency("graph", nil, err)
	}
	if len(rows) > 0 {
		if foreign, _ := rows[0]["foreign"].(int64); foreign > 0 {
			return nil, errs.Validation("query result crossed project boundary: %d relationship endpoint(s) outside project", foreign)
		}
	}
	return records, nil
}

// CreateRelationship links two existing nodes after verifying both
// belong to the requesting project. Runs inside a single transaction so
// a mid-sequence failure leaves no partially-linked state.
func (a *Adapter) CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]any, projectID string) (*Relationship, error) {
	if projectID == "" {
		return nil, errs.Validation("project_id is required")
	}
	if a.readOnly {
		return nil, errs.Permission("relationship creation rejected: instance is read-only")
	}
	if err := validIdentifier(relType); err != nil {
		return nil, err
	}

	relID := uuid.NewString()
	start := time.Now()
	err := a.runner.Write(ctx, func(tx Tx) error {
		endpoints, err := tx.Run(ctx,
			`MATCH (a {id: $from_id}) MATCH (b {id: $to_id})
			 RETURN a.project_id AS from_project, b.project_id AS to_project`,
			map[string]any{"from_id": fromID, "to_id": toID})
		if err != nil {
			return errs.Dependency("graph", nil, err)
		}
		if len(endpoints) == 0 {
			return errs.Validation("relationship endpoints not found: %s, %s", fromID, toID)
		}
		fromProject, _ := endpoints[0]["from_project"].(string)
		toProject, _ := endpoints[0]["to_project"].(string)
		if fromProject != projectID || toProject != projectID {
			return errs.Validation("cross-project relationship: %s is in %q, %s is in %q, request is for %q",
				fromID, fromProject, toID, toProject, projectID)
		}

		cleanProps := make(map[string]any, len(props))
		for k, v := range props {
			if k == "id" {
				continue
			}
			cleanProps[k] = v
		}

		create := fmt.Sprintf(
			`MATCH (a {id: $from_id, project_id: $project_id})
			 MATCH (b {id: $to_id, project_id: $project_id})
			 CREATE (a)-[r:%s]->(b)
			 SET r = $props, r.id = $rel_id
			 RETURN r.id AS id`, relType)
		created, err := tx.Run(ctx, create, map[string]any{
			"from_id":    fromID,
			"to_id":      toID,
			"project_id": projectID,
			"props":      cleanProps,
			"rel_id":     relID,
		})
		if err != nil {
			return errs.Dependency("graph", nil, err)
		}
		if len(created) == 0 {
			return errs.Validation("relationship endpoints not found in project %q", projectID)
		}
		return nil
	})
	a.metrics.recordQuery("create_relationship", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &Relationship{
		ID:          relID,
		Type:        relType,
		StartNodeID: fromID,
		EndNodeID:   toID,
		Properties:  props,
	}, nil
}

// CreateNode stores a node with the given labels and properties in the
// requesting project. The adapter owns the id and project_id properties.
func (a *Adapter) CreateNode(ctx context.Context, labels []string, props map[string]any, projectID string) (*Node, error) {
	if projectID == "" {
		return nil, errs.Validation("project_id is required")
	}
	if a.readOnly {
		return nil, errs.Permission("node creation rejected: instance is read-only")
	}
	if len(labels) == 0 {
		return nil, errs.Validation("at least one label is required")
	}
	labelExpr := ""
	for _, label := range labels {
		if err := validIdentifier(label); err != nil {
			return nil, err
		}
		labelExpr += ":" + label
	}

	nodeID := uuid.NewString()
	cleanProps := make(map[string]any, len(props))
	for k, v := range props {
		if k == "id" || k == "project_id" {
			continue
		}
		cleanProps[k] = v
	}

	start := time.Now()
	err := a.runner.Write(ctx, func(tx Tx) error {
		create := fmt.Sprintf(
			`CREATE (n%s) SET n = $props, n.id = $id, n.project_id = $project_id`, labelExpr)
		_, err := tx.Run(ctx, create, map[string]any{
			"props":      cleanProps,
			"id":         nodeID,
			"project_id": projectID,
		})
		return err
	})
	a.metrics.recordQuery("create_node", time.Since(start), err)
	if err != nil {
		return nil, errs.Dependency("graph", nil, err)
	}

	return &Node{
		ID:         nodeID,
		Labels:     labels,
		Properties: cleanProps,
		ProjectID:  projectID,
	}, nil
}

// VectorSearch returns documents nearest to the query embedding within
// the requesting project. The index query sees all projects, so the
// tenant predicate filters candidates before they reach the caller.
func (a *Adapter) VectorSearch(ctx context.Context, embedding []float32, limit int, projectID string) ([]ScoredNode, error) {
	if projectID == "" {
		return nil, errs.Validation("project_id is required")
	}
	if limit < 1 {
		return nil, errs.Validation("limit must be at least 1, got %d", limit)
	}

	start := time.Now()
	raw, err := a.runner.Read(ctx,
		`CALL db.index.vector.queryNodes($index, $k, $embedding)
		 YIELD node, score
		 WHERE node.project_id = $project_id
		 RETURN node, score
		 ORDER BY score DESC
		 LIMIT $limit`,
		map[string]any{
			"index":      vectorIndexName,
			"k":          limit * vectorOverfetch,
			"embedding":  embedding,
			"project_id": projectID,
			"limit":      limit,
		})
	elapsed := time.Since(start)
	a.metrics.recordQuery("vector_search", elapsed, err)
	if err != nil {
		return nil, errs.Dependency("graph", nil, err)
	}

	hits := make([]ScoredNode, 0, len(raw))
	for _, rec := range raw {
		driverNode, ok := rec["node"].(neo4j.Node)
		if !ok {
			continue
		}
		node := fromDriverNode(driverNode)
		if node.ProjectID != projectID {
			return nil, errs.Validation("vector search crossed project boundary: node %s", node.ID)
		}
		score, _ := rec["score"].(float64)
		hits = append(hits, ScoredNode{Node: node, Score: score})
	}
	return hits, nil
}

// GetNeighbors returns nodes connected to nodeID within depth hops,
// restricted to paths that stay inside the requesting project.
func (a *Adapter) GetNeighbors(ctx context.Context, nodeID, projectID string, depth int) (*NeighborResults, error) {
	if projectID == "" {
		return nil, errs.Validation("project_id is required")
	}
	if depth < 1 || depth > maxNeighborDepth {
		return nil, errs.Validation("depth must be between 1 and %d, got %d", maxNeighborDepth, depth)
	}

	query := fmt.Sprintf(
		`MATCH (start {id: $node_id, project_id: $project_id})
		 MATCH path = (start)-[*1..%d]-(neighbor)
		 WHERE all(n IN nodes(path) WHERE n.project_id = $project_id)
		 UNWIND nodes(path) AS n
		 UNWIND relationships(path) AS r
		 RETURN collect(DISTINCT n) AS nodes, collect(DISTINCT r) AS rels`, depth)

	start := time.Now()
	raw, err := a.runner.Read(ctx, query, map[string]any{
		"node_id":    nodeID,
		"project_id": projectID,
	})
	elapsed := time.Since(start)
	a.metrics.recordQuery("get_neighbors", elapsed, err)
	if err != nil {
		return nil, errs.Dependency("graph", nil, err)
	}

	results := &NeighborResults{QueryTimeMS: elapsed.Milliseconds()}
	if len(raw) == 0 {
		return results, nil
	}

	byElementID := make(map[string]string)
	if nodes, ok := raw[0]["nodes"].([]any); ok {
		for _, v := range nodes {
			driverNode, ok := v.(neo4j.Node)
			if !ok {
				continue
			}
			node := fromDriverNode(driverNode)
			if node.ProjectID != projectID {
				return nil, errs.Validation("neighbor expansion crossed project boundary: node %s", node.ID)
			}
			byElementID[driverNode.ElementId] = node.ID
			results.Nodes = append(results.Nodes, node)
		}
	}
	if rels, ok := raw[0]["rels"].([]any); ok {
		for _, v := range rels {
			driverRel, ok := v.(neo4j.Relationship)
			if !ok {
				continue
			}
			results.Relationships = append(results.Relationships, fromDriverRelationship(driverRel, byElementID))
		}
	}
	return results, nil
}

// convertScoped converts a driver value into a JSON-friendly shape,
// failing closed if a node from another project appears. Relationship
// endpoint element ids land in endpoints for later verification.
func convertScoped(value any, projectID string, endpoints map[string]struct{}) (any, error) {
	switch v := value.(type) {
	case neo4j.Node:
		node := fromDriverNode(v)
		if node.ProjectID != projectID {
			return nil, errs.Validation("query result crossed project boundary: node %s", node.ID)
		}
		return node, nil
	case neo4j.Relationship:
		if endpoints != nil {
			endpoints[v.StartElementId] = struct{}{}
			endpoints[v.EndElementId] = struct{}{}
		}
		return fromDriverRelationship(v, nil), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := convertScoped(item, projectID, endpoints)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}
