package knowledge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/batch"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/errs"
	"github.com/fyrsmithlabs/knowledged/internal/graph"
)

const (
	// maxBatchItems caps list-valued requests so one caller cannot
	// monopolize the orchestrator.
	maxBatchItems = 256

	defaultSearchLimit = 10
	maxSearchLimit     = 100

	workflowLabel    = "WorkflowData"
	agentMemoryLabel = "AgentMemory"
)

// GraphStore is the subset of the graph adapter the service uses.
type GraphStore interface {
	RunQuery(ctx context.Context, cypher string, params map[string]any, projectID string) (*graph.QueryResults, error)
	CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]any, projectID string) (*graph.Relationship, error)
	CreateNode(ctx context.Context, labels []string, props map[string]any, projectID string) (*graph.Node, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int, projectID string) ([]graph.ScoredNode, error)
	GetNeighbors(ctx context.Context, nodeID, projectID string, depth int) (*graph.NeighborResults, error)
	Ping(ctx context.Context) error
}

// Service coordinates the embedding provider and the graph store behind
// the gateway's tool surface.
type Service struct {
	provider embeddings.Provider
	store    GraphStore
	batches  *batch.Orchestrator
	logger   *zap.Logger
}

// NewService wires the service.
func NewService(provider embeddings.Provider, store GraphStore, batches *batch.Orchestrator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		store:    store,
		batches:  batches,
		logger:   logger.Named("knowledge"),
	}
}

func requireProject(projectID string) error {
	if projectID == "" {
		return errs.Validation("project_id is required")
	}
	return nil
}

// EmbedText embeds one text.
func (s *Service) EmbedText(ctx context.Context, projectID, text string) (*EmbedResult, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errs.Validation("text must not be empty")
	}
	start := time.Now()
	vectors, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return &EmbedResult{
		DocumentID:       uuid.NewString(),
		Embedding:        vectors[0],
		ModelUsed:        s.provider.Model(),
		Dimension:        s.provider.Dimension(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// BatchEmbedTexts embeds many texts with bounded concurrency. The
// response has one item per input, in input order; a failed item does
// not abort its siblings.
func (s *Service) BatchEmbedTexts(ctx context.Context, projectID string, texts []string) (*BatchEmbedResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if err := checkBatchSize(len(texts)); err != nil {
		return nil, err
	}

	res := batch.Run(ctx, s.batches, len(texts), func(ctx context.Context, i int) ([]float32, error) {
		if texts[i] == "" {
			return nil, errs.Validation("text at index %d is empty", i)
		}
		vectors, err := s.provider.Embed(ctx, []string{texts[i]})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	})

	out := &BatchEmbedResults{
		Items: make([]BatchEmbedItem, len(res.Items)),
		Stats: statsOf(res.Succeeded, res.Failed, res.P50.Seconds()*1000, res.P95.Seconds()*1000),
	}
	for i, item := range res.Items {
		out.Items[i] = BatchEmbedItem{Index: item.Index, Embedding: item.Value, Error: itemError(item.Err)}
		if item.Err == nil {
			out.Items[i].DocumentID = uuid.NewString()
		}
	}
	return out, nil
}

// StoreDocument embeds a document's content and stores it as a node
// with its vector. Embedding failure aborts the store; no partial node
// is written.
func (s *Service) StoreDocument(ctx context.Context, projectID string, doc DocumentInput) (*StoredDocument, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if doc.Content == "" {
		return nil, errs.Validation("document content must not be empty")
	}

	vectors, err := s.provider.Embed(ctx, []string{doc.Content})
	if err != nil {
		return nil, err
	}

	props := map[string]any{
		"content":    doc.Content,
		"embedding":  vectors[0],
		"model":      s.provider.Model(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if doc.DocumentType != "" {
		props["document_type"] = doc.DocumentType
	}
	if len(doc.Metadata) > 0 {
		encoded, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, errs.Validation("metadata is not serializable: %v", err)
		}
		props["metadata"] = string(encoded)
	}

	node, err := s.store.CreateNode(ctx, []string{graph.DocumentLabel}, props, projectID)
	if err != nil {
		return nil, err
	}
	return &StoredDocument{ID: node.ID, Embedded: true, Dimension: s.provider.Dimension()}, nil
}

// BulkStoreDocuments stores many documents with bounded concurrency.
func (s *Service) BulkStoreDocuments(ctx context.Context, projectID string, docs []DocumentInput) (*BulkStoreResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if err := checkBatchSize(len(docs)); err != nil {
		return nil, err
	}

	res := batch.Run(ctx, s.batches, len(docs), func(ctx context.Context, i int) (*StoredDocument, error) {
		return s.StoreDocument(ctx, projectID, docs[i])
	})

	out := &BulkStoreResults{
		Items: make([]BulkStoreItem, len(res.Items)),
		Stats: statsOf(res.Succeeded, res.Failed, res.P50.Seconds()*1000, res.P95.Seconds()*1000),
	}
	for i, item := range res.Items {
		out.Items[i] = BulkStoreItem{Index: item.Index, Document: item.Value, Error: itemError(item.Err)}
	}
	return out, nil
}

// SearchByEmbedding finds the documents nearest to the query vector
// within the project.
func (s *Service) SearchByEmbedding(ctx context.Context, projectID string, embedding []float32, limit int) (*SearchResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if len(embedding) != s.provider.Dimension() {
		return nil, errs.Validation("embedding has dimension %d, index expects %d",
			len(embedding), s.provider.Dimension())
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, errs.Validation("limit must be between 1 and %d, got %d", maxSearchLimit, limit)
	}

	start := time.Now()
	scored, err := s.store.VectorSearch(ctx, embedding, limit, projectID)
	if err != nil {
		return nil, err
	}

	out := &SearchResults{
		Hits:        make([]SearchHit, len(scored)),
		TotalCount:  len(scored),
		QueryTimeMS: time.Since(start).Milliseconds(),
		ModelUsed:   s.provider.Model(),
	}
	for i, hit := range scored {
		out.Hits[i] = toSearchHit(hit)
	}
	return out, nil
}

// BatchSimilaritySearch runs many similarity searches with bounded
// concurrency.
func (s *Service) BatchSimilaritySearch(ctx context.Context, projectID string, queries [][]float32, limit int) (*BatchSearchResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if err := checkBatchSize(len(queries)); err != nil {
		return nil, err
	}

	res := batch.Run(ctx, s.batches, len(queries), func(ctx context.Context, i int) (*SearchResults, error) {
		return s.SearchByEmbedding(ctx, projectID, queries[i], limit)
	})

	out := &BatchSearchResults{
		Items: make([]BatchSearchItem, len(res.Items)),
		Stats: statsOf(res.Succeeded, res.Failed, res.P50.Seconds()*1000, res.P95.Seconds()*1000),
	}
	for i, item := range res.Items {
		out.Items[i] = BatchSearchItem{Index: item.Index, Results: item.Value, Error: itemError(item.Err)}
	}
	return out, nil
}

// CreateRelationship links two nodes belonging to the project.
func (s *Service) CreateRelationship(ctx context.Context, projectID, fromID, toID, relType string, props map[string]any) (*Relationship, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if fromID == "" || toID == "" {
		return nil, errs.Validation("from_node_id and to_node_id are required")
	}
	if relType == "" {
		return nil, errs.Validation("relationship_type is required")
	}
	return s.store.CreateRelationship(ctx, fromID, toID, relType, props, projectID)
}

// QueryGraph runs caller-supplied Cypher scoped to the project.
func (s *Service) QueryGraph(ctx context.Context, projectID, cypher string, params map[string]any) (*QueryResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if cypher == "" {
		return nil, errs.Validation("query must not be empty")
	}
	return s.store.RunQuery(ctx, cypher, params, projectID)
}

// GetNodeNeighbors expands a node's neighborhood within the project.
func (s *Service) GetNodeNeighbors(ctx context.Context, projectID, nodeID string, depth int) (*NeighborResults, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if nodeID == "" {
		return nil, errs.Validation("node_id is required")
	}
	if depth == 0 {
		depth = 1
	}
	return s.store.GetNeighbors(ctx, nodeID, projectID, depth)
}

// StoreWorkflowData persists an opaque workflow state blob as a node
// keyed by workflow id.
func (s *Service) StoreWorkflowData(ctx context.Context, projectID, workflowID string, data map[string]any) (*Node, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if workflowID == "" {
		return nil, errs.Validation("workflow_id is required")
	}
	if len(data) == 0 {
		return nil, errs.Validation("data must not be empty")
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, errs.Validation("data is not serializable: %v", err)
	}
	return s.store.CreateNode(ctx, []string{workflowLabel}, map[string]any{
		"workflow_id": workflowID,
		"data":        string(encoded),
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}, projectID)
}

// StoreAgentMemory persists an agent memory entry with its embedding so
// memories are retrievable both by graph traversal and by similarity.
func (s *Service) StoreAgentMemory(ctx context.Context, projectID, agentID, memoryType, content string) (*Node, error) {
	if err := requireProject(projectID); err != nil {
		return nil, err
	}
	if agentID == "" {
		return nil, errs.Validation("agent_id is required")
	}
	if content == "" {
		return nil, errs.Validation("content must not be empty")
	}
	if memoryType == "" {
		memoryType = "observation"
	}

	vectors, err := s.provider.Embed(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	return s.store.CreateNode(ctx, []string{agentMemoryLabel}, map[string]any{
		"agent_id":    agentID,
		"memory_type": memoryType,
		"content":     content,
		"embedding":   vectors[0],
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}, projectID)
}

func checkBatchSize(n int) error {
	if n == 0 {
		return errs.Validation("batch must contain at least one item")
	}
	if n > maxBatchItems {
		return errs.Validation("batch has %d items, maximum is %d", n, maxBatchItems)
	}
	return nil
}

func itemError(err error) *ItemError {
	if err == nil {
		return nil
	}
	return &ItemError{Code: string(errs.CodeOf(err)), Message: err.Error()}
}

func statsOf(succeeded, failed int, p50, p95 float64) BatchStats {
	return BatchStats{
		Total:        succeeded + failed,
		Succeeded:    succeeded,
		Failed:       failed,
		P50LatencyMS: p50,
		P95LatencyMS: p95,
	}
}

func toSearchHit(scored graph.ScoredNode) SearchHit {
	hit := SearchHit{ID: scored.Node.ID, Score: scored.Score}
	if content, ok := scored.Node.Properties["content"].(string); ok {
		hit.Content = content
	}
	if raw, ok := scored.Node.Properties["metadata"].(string); ok {
		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			hit.Metadata = meta
		}
	}
	return hit
}
