package gateway

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/knowledged/internal/knowledge"
)

type embedTextInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Text      string `json:"text" jsonschema:"required,Text to embed"`
}

type batchEmbedInput struct {
	ProjectID string   `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Texts     []string `json:"texts" jsonschema:"required,Texts to embed, one vector per entry"`
}

func (s *Server) registerEmbeddingTools() {
	register(s, &ToolMetadata{
		Name:        "embed_text",
		Description: "Generate an embedding vector for a single text",
		Category:    CategoryEmbedding,
	}, func(ctx context.Context, args embedTextInput) (*knowledge.EmbedResult, string, error) {
		res, err := s.svc.EmbedText(ctx, args.ProjectID, args.Text)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Embedded 1 text (%s, %d dimensions)", res.ModelUsed, res.Dimension), nil
	})

	register(s, &ToolMetadata{
		Name:        "batch_embed_texts",
		Description: "Generate embeddings for many texts with bounded concurrency; results are ordered and itemized",
		Category:    CategoryEmbedding,
	}, func(ctx context.Context, args batchEmbedInput) (*knowledge.BatchEmbedResults, string, error) {
		res, err := s.svc.BatchEmbedTexts(ctx, args.ProjectID, args.Texts)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Embedded %d/%d texts", res.Stats.Succeeded, res.Stats.Total), nil
	})
}

type storeDocumentInput struct {
	ProjectID    string         `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Content      string         `json:"content" jsonschema:"required,Document content to embed and store"`
	DocumentType string         `json:"document_type,omitempty" jsonschema:"Document kind, stored as a property"`
	Metadata     map[string]any `json:"metadata,omitempty" jsonschema:"Arbitrary document metadata"`
}

type bulkStoreInput struct {
	ProjectID string                    `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Documents []knowledge.DocumentInput `json:"documents" jsonschema:"required,Documents to embed and store"`
}

func (s *Server) registerDocumentTools() {
	register(s, &ToolMetadata{
		Name:        "store_document",
		Description: "Embed a document and store it with its vector; embedding failure stores nothing",
		Category:    CategoryDocument,
	}, func(ctx context.Context, args storeDocumentInput) (*knowledge.StoredDocument, string, error) {
		res, err := s.svc.StoreDocument(ctx, args.ProjectID, knowledge.DocumentInput{
			Content:      args.Content,
			DocumentType: args.DocumentType,
			Metadata:     args.Metadata,
		})
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Stored document %s", res.ID), nil
	})

	register(s, &ToolMetadata{
		Name:        "bulk_store_documents",
		Description: "Embed and store many documents with bounded concurrency; results are ordered and itemized",
		Category:    CategoryDocument,
	}, func(ctx context.Context, args bulkStoreInput) (*knowledge.BulkStoreResults, string, error) {
		res, err := s.svc.BulkStoreDocuments(ctx, args.ProjectID, args.Documents)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Stored %d/%d documents", res.Stats.Succeeded, res.Stats.Total), nil
	})
}

type searchInput struct {
	ProjectID string    `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Embedding []float32 `json:"embedding" jsonschema:"required,Query vector, must match the index dimension"`
	Limit     int       `json:"limit,omitempty" jsonschema:"Maximum hits to return (default 10)"`
}

type batchSearchInput struct {
	ProjectID  string      `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Embeddings [][]float32 `json:"embeddings" jsonschema:"required,Query vectors, one search per entry"`
	Limit      int         `json:"limit,omitempty" jsonschema:"Maximum hits per search (default 10)"`
}

func (s *Server) registerSearchTools() {
	register(s, &ToolMetadata{
		Name:        "search_by_embedding",
		Description: "Find documents nearest to a query vector within the project",
		Category:    CategorySearch,
	}, func(ctx context.Context, args searchInput) (*knowledge.SearchResults, string, error) {
		res, err := s.svc.SearchByEmbedding(ctx, args.ProjectID, args.Embedding, args.Limit)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Found %d documents", len(res.Hits)), nil
	})

	register(s, &ToolMetadata{
		Name:        "batch_similarity_search",
		Description: "Run many similarity searches with bounded concurrency; results are ordered and itemized",
		Category:    CategorySearch,
	}, func(ctx context.Context, args batchSearchInput) (*knowledge.BatchSearchResults, string, error) {
		res, err := s.svc.BatchSimilaritySearch(ctx, args.ProjectID, args.Embeddings, args.Limit)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Completed %d/%d searches", res.Stats.Succeeded, res.Stats.Total), nil
	})
}

type createRelationshipInput struct {
	ProjectID        string         `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	FromNodeID       string         `json:"from_node_id" jsonschema:"required,Source node id"`
	ToNodeID         string         `json:"to_node_id" jsonschema:"required,Target node id"`
	RelationshipType string         `json:"relationship_type" jsonschema:"required,Relationship type, letters digits and underscores"`
	Properties       map[string]any `json:"properties,omitempty" jsonschema:"Relationship properties"`
}

type queryGraphInput struct {
	ProjectID  string         `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	Query      string         `json:"query" jsonschema:"required,Cypher query; it must filter on $project_id and the server injects the value"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"Query parameters"`
}

type neighborsInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	NodeID    string `json:"node_id" jsonschema:"required,Node to expand from"`
	Depth     int    `json:"depth,omitempty" jsonschema:"Traversal depth 1-3 (default 1)"`
}

func (s *Server) registerGraphTools() {
	register(s, &ToolMetadata{
		Name:        "create_relationship",
		Description: "Create a typed relationship between two nodes of the same project",
		Category:    CategoryGraph,
	}, func(ctx context.Context, args createRelationshipInput) (*knowledge.Relationship, string, error) {
		rel, err := s.svc.CreateRelationship(ctx, args.ProjectID,
			args.FromNodeID, args.ToNodeID, args.RelationshipType, args.Properties)
		if err != nil {
			return nil, "", err
		}
		return rel, fmt.Sprintf("Created %s relationship %s", rel.Type, rel.ID), nil
	})

	register(s, &ToolMetadata{
		Name:        "query_graph",
		Description: "Run a Cypher query scoped to the project; mutations are rejected on read-only instances",
		Category:    CategoryGraph,
	}, func(ctx context.Context, args queryGraphInput) (*knowledge.QueryResults, string, error) {
		res, err := s.svc.QueryGraph(ctx, args.ProjectID, args.Query, args.Parameters)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Query returned %d records", len(res.Records)), nil
	})

	register(s, &ToolMetadata{
		Name:        "get_node_neighbors",
		Description: "Return nodes and relationships connected to a node, staying inside the project",
		Category:    CategoryGraph,
	}, func(ctx context.Context, args neighborsInput) (*knowledge.NeighborResults, string, error) {
		res, err := s.svc.GetNodeNeighbors(ctx, args.ProjectID, args.NodeID, args.Depth)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Found %d neighbors", len(res.Nodes)), nil
	})
}

type storeWorkflowInput struct {
	ProjectID  string         `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	WorkflowID string         `json:"workflow_id" jsonschema:"required,Workflow instance id"`
	Data       map[string]any `json:"data" jsonschema:"required,Opaque workflow state"`
}

type storeMemoryInput struct {
	ProjectID  string `json:"project_id" jsonschema:"required,Project the request is scoped to"`
	AgentID    string `json:"agent_id" jsonschema:"required,Agent the memory belongs to"`
	MemoryType string `json:"memory_type,omitempty" jsonschema:"Memory kind (default observation)"`
	Content    string `json:"content" jsonschema:"required,Memory content, embedded for later retrieval"`
}

type storedNodeOutput struct {
	ID string `json:"id" jsonschema:"Stored node id"`
}

func (s *Server) registerWorkflowTools() {
	register(s, &ToolMetadata{
		Name:        "store_workflow_data",
		Description: "Persist workflow state keyed by workflow id",
		Category:    CategoryWorkflow,
	}, func(ctx context.Context, args storeWorkflowInput) (storedNodeOutput, string, error) {
		node, err := s.svc.StoreWorkflowData(ctx, args.ProjectID, args.WorkflowID, args.Data)
		if err != nil {
			return storedNodeOutput{}, "", err
		}
		return storedNodeOutput{ID: node.ID}, fmt.Sprintf("Stored workflow data %s", node.ID), nil
	})

	register(s, &ToolMetadata{
		Name:        "store_agent_memory",
		Description: "Persist an agent memory entry with its embedding",
		Category:    CategoryWorkflow,
	}, func(ctx context.Context, args storeMemoryInput) (storedNodeOutput, string, error) {
		node, err := s.svc.StoreAgentMemory(ctx, args.ProjectID, args.AgentID, args.MemoryType, args.Content)
		if err != nil {
			return storedNodeOutput{}, "", err
		}
		return storedNodeOutput{ID: node.ID}, fmt.Sprintf("Stored agent memory %s", node.ID), nil
	})
}

type healthCheckInput struct{}

func (s *Server) registerSystemTools() {
	register(s, &ToolMetadata{
		Name:        "health_check",
		Description: "Probe the embedding provider and graph database and report aggregate health",
		Category:    CategorySystem,
	}, func(ctx context.Context, _ healthCheckInput) (knowledge.HealthStatus, string, error) {
		status := s.health.Check(ctx)
		return status, fmt.Sprintf("Service is %s", status.Status), nil
	})
}
