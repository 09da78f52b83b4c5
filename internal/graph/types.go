package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Node is a graph node scoped to a project.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	ProjectID  string         `json:"project_id"`
}

// Relationship is a typed edge between two nodes.
type Relationship struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	StartNodeID string         `json:"start_node_id"`
	EndNodeID   string         `json:"end_node_id"`
	Properties  map[string]any `json:"properties"`
}

// QueryResults is the transient response shape for arbitrary queries.
type QueryResults struct {
	Records     []map[string]any `json:"records"`
	QueryTimeMS int64            `json:"query_time_ms"`
}

// NeighborResults carries a node's neighborhood.
type NeighborResults struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
	QueryTimeMS   int64          `json:"query_time_ms"`
}

// ScoredNode is a vector search hit.
type ScoredNode struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// fromDriverNode converts a driver node into the domain shape. The id
// and project_id properties are promoted out of the property map.
func fromDriverNode(n neo4j.Node) Node {
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		props[k] = v
	}
	node := Node{Labels: n.Labels, Properties: props}
	if id, ok := props["id"].(string); ok {
		node.ID = id
		delete(props, "id")
	} else {
		node.ID = n.ElementId
	}
	if pid, ok := props["project_id"].(string); ok {
		node.ProjectID = pid
		delete(props, "project_id")
	}
	return node
}

// fromDriverRelationship converts a driver relationship. Endpoint IDs
// resolve through byElementID when the endpoints were returned in the
// same record, falling back to the driver element IDs.
func fromDriverRelationship(r neo4j.Relationship, byElementID map[string]string) Relationship {
	props := make(map[string]any, len(r.Props))
	for k, v := range r.Props {
		props[k] = v
	}
	rel := Relationship{Type: r.Type, Properties: props}
	if id, ok := props["id"].(string); ok {
		rel.ID = id
		delete(props, "id")
	} else {
		rel.ID = r.ElementId
	}
	rel.StartNodeID = resolveEndpoint(r.StartElementId, byElementID)
	rel.EndNodeID = resolveEndpoint(r.EndElementId, byElementID)
	return rel
}

func resolveEndpoint(elementID string, byElementID map[string]string) string {
	if id, ok := byElementID[elementID]; ok {
		return id
	}
	return elementID
}
