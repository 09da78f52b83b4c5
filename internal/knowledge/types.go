// Package knowledge implements the gateway's service layer: embedding,
// document storage, similarity search, graph operations, and the batch
// variants that fan work out over the shared orchestrator.
package knowledge

import (
	"github.com/fyrsmithlabs/knowledged/internal/graph"
)

// EmbedResult is a single text embedding. DocumentID is assigned by
// the service so callers can correlate the vector with later stores.
type EmbedResult struct {
	DocumentID       string    `json:"document_id"`
	Embedding        []float32 `json:"embedding"`
	ModelUsed        string    `json:"model_used"`
	Dimension        int       `json:"dimension"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
}

// ItemError is a per-item failure inside a batch response.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchEmbedItem is one entry of a batch embedding response, at the
// same index as its input text.
type BatchEmbedItem struct {
	Index      int        `json:"index"`
	DocumentID string     `json:"document_id,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
	Error      *ItemError `json:"error,omitempty"`
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Total        int     `json:"total"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	P50LatencyMS float64 `json:"p50_latency_ms"`
	P95LatencyMS float64 `json:"p95_latency_ms"`
}

// BatchEmbedResults is the ordered response for batch_embed_texts.
type BatchEmbedResults struct {
	Items []BatchEmbedItem `json:"items"`
	Stats BatchStats       `json:"stats"`
}

// DocumentInput is a document to store.
type DocumentInput struct {
	Content      string         `json:"content"`
	DocumentType string         `json:"document_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// StoredDocument identifies a stored document.
type StoredDocument struct {
	ID        string `json:"id"`
	Embedded  bool   `json:"embedded"`
	Dimension int    `json:"dimension"`
}

// BulkStoreItem is one entry of a bulk store response.
type BulkStoreItem struct {
	Index    int             `json:"index"`
	Document *StoredDocument `json:"document,omitempty"`
	Error    *ItemError      `json:"error,omitempty"`
}

// BulkStoreResults is the ordered response for bulk_store_documents.
type BulkStoreResults struct {
	Items []BulkStoreItem `json:"items"`
	Stats BatchStats      `json:"stats"`
}

// SearchHit is one similarity search match.
type SearchHit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResults is the response for search_by_embedding.
type SearchResults struct {
	Hits        []SearchHit `json:"hits"`
	TotalCount  int         `json:"total_count"`
	QueryTimeMS int64       `json:"query_time_ms"`
	ModelUsed   string      `json:"model_used"`
}

// BatchSearchItem is one entry of a batch similarity search response.
type BatchSearchItem struct {
	Index   int            `json:"index"`
	Results *SearchResults `json:"results,omitempty"`
	Error   *ItemError     `json:"error,omitempty"`
}

// BatchSearchResults is the ordered response for batch_similarity_search.
type BatchSearchResults struct {
	Items []BatchSearchItem `json:"items"`
	Stats BatchStats        `json:"stats"`
}

// Aliases re-exported so gateway handlers do not import graph directly.
type (
	Node            = graph.Node
	Relationship    = graph.Relationship
	QueryResults    = graph.QueryResults
	NeighborResults = graph.NeighborResults
)
