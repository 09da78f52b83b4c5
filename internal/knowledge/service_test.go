package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowledged/internal/batch"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/errs"
	"github.com/fyrsmithlabs/knowledged/internal/graph"
)

// fakeStore records calls and answers from scripted fields.
type fakeStore struct {
	createdNodes []createdNode
	queryErr     error
	searchHits   []graph.ScoredNode
	pingErr      error
}

type createdNode struct {
	labels    []string
	props     map[string]any
	projectID string
}

func (f *fakeStore) RunQuery(_ context.Context, cypher string, params map[string]any, projectID string) (*graph.QueryResults, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &graph.QueryResults{Records: []map[string]any{{"cypher": cypher, "project": projectID}}}, nil
}

func (f *fakeStore) CreateRelationship(_ context.Context, fromID, toID, relType string, props map[string]any, projectID string) (*graph.Relationship, error) {
	return &graph.Relationship{ID: "rel-1", Type: relType, StartNodeID: fromID, EndNodeID: toID, Properties: props}, nil
}

func (f *fakeStore) CreateNode(_ context.Context, labels []string, props map[string]any, projectID string) (*graph.Node, error) {
	f.createdNodes = append(f.createdNodes, createdNode{labels: labels, props: props, projectID: projectID})
	return &graph.Node{ID: "node-1", Labels: labels, Properties: props, ProjectID: projectID}, nil
}

func (f *fakeStore) VectorSearch(context.Context, []float32, int, string) ([]graph.ScoredNode, error) {
	return f.searchHits, nil
}

func (f *fakeStore) GetNeighbors(_ context.Context, nodeID, projectID string, depth int) (*graph.NeighborResults, error) {
	return &graph.NeighborResults{}, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

// failingProvider fails every call with the scripted error.
type failingProvider struct {
	err error
}

func (p *failingProvider) Embed(context.Context, []string) ([][]float32, error) { return nil, p.err }
func (p *failingProvider) Model() string                                        { return "broken" }
func (p *failingProvider) Dimension() int                                       { return 8 }
func (p *failingProvider) Ping(context.Context) error                           { return p.err }
func (p *failingProvider) Close() error                                         { return nil }

func newTestService(store GraphStore, provider embeddings.Provider) *Service {
	if provider == nil {
		provider = embeddings.NewMockProvider("test-model", 8)
	}
	return NewService(provider, store, batch.New(4, nil, nil), nil)
}

func TestEmbedText(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	res, err := s.EmbedText(context.Background(), "proj-a", "hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Len(t, res.Embedding, 8)
	assert.Equal(t, "test-model", res.ModelUsed)
	assert.Equal(t, 8, res.Dimension)
}

func TestEmbedTextValidation(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	_, err := s.EmbedText(context.Background(), "", "hello")
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = s.EmbedText(context.Background(), "proj-a", "")
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestBatchEmbedTextsOrderAndIsolation(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	res, err := s.BatchEmbedTexts(context.Background(), "proj-a",
		[]string{"alpha", "", "gamma"})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	assert.Equal(t, 0, res.Items[0].Index)
	assert.NotEmpty(t, res.Items[0].DocumentID)
	assert.Len(t, res.Items[0].Embedding, 8)
	assert.Nil(t, res.Items[0].Error)

	require.NotNil(t, res.Items[1].Error, "empty text fails only its own slot")
	assert.Equal(t, string(errs.CodeValidation), res.Items[1].Error.Code)
	assert.Nil(t, res.Items[1].Embedding)
	assert.Empty(t, res.Items[1].DocumentID, "failed slot carries no document id")

	assert.NotEmpty(t, res.Items[2].DocumentID)
	assert.Len(t, res.Items[2].Embedding, 8)

	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Succeeded)
	assert.Equal(t, 1, res.Stats.Failed)
}

func TestBatchEmbedTextsEmptyList(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)
	_, err := s.BatchEmbedTexts(context.Background(), "proj-a", nil)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestBatchEmbedTextsSizeCap(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)
	texts := make([]string, maxBatchItems+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := s.BatchEmbedTexts(context.Background(), "proj-a", texts)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestStoreDocument(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, nil)

	res, err := s.StoreDocument(context.Background(), "proj-a", DocumentInput{
		Content:      "the pilot opens on a rooftop",
		DocumentType: "scene",
		Metadata:     map[string]any{"scene": "1A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "node-1", res.ID)
	assert.True(t, res.Embedded)

	require.Len(t, store.createdNodes, 1)
	created := store.createdNodes[0]
	assert.Equal(t, []string{graph.DocumentLabel}, created.labels)
	assert.Equal(t, "proj-a", created.projectID)
	assert.Equal(t, "the pilot opens on a rooftop", created.props["content"])
	assert.Equal(t, "scene", created.props["document_type"])
	assert.NotEmpty(t, created.props["created_at"])
	require.IsType(t, []float32{}, created.props["embedding"])
	assert.Len(t, created.props["embedding"], 8)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(created.props["metadata"].(string)), &meta))
	assert.Equal(t, "1A", meta["scene"])
}

func TestStoreDocumentEmbeddingFailureWritesNothing(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, &failingProvider{err: errs.Dependency("embeddings", nil, errors.New("down"))})

	_, err := s.StoreDocument(context.Background(), "proj-a", DocumentInput{Content: "x"})
	require.Error(t, err)
	assert.Equal(t, errs.CodeDependency, errs.CodeOf(err))
	assert.Empty(t, store.createdNodes, "no node may exist without its vector")
}

func TestBulkStoreDocuments(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, nil)

	res, err := s.BulkStoreDocuments(context.Background(), "proj-a", []DocumentInput{
		{Content: "one"},
		{Content: ""},
		{Content: "three"},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.NotNil(t, res.Items[0].Document)
	assert.NotNil(t, res.Items[1].Error)
	assert.NotNil(t, res.Items[2].Document)
	assert.Equal(t, 2, res.Stats.Succeeded)
	assert.Len(t, store.createdNodes, 2)
}

func TestSearchByEmbedding(t *testing.T) {
	meta, _ := json.Marshal(map[string]any{"scene": "1A"})
	store := &fakeStore{searchHits: []graph.ScoredNode{
		{
			Node: graph.Node{
				ID:         "doc-1",
				Properties: map[string]any{"content": "rooftop", "metadata": string(meta)},
				ProjectID:  "proj-a",
			},
			Score: 0.9,
		},
	}}
	s := newTestService(store, nil)

	res, err := s.SearchByEmbedding(context.Background(), "proj-a", make([]float32, 8), 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "test-model", res.ModelUsed)
	assert.Equal(t, "doc-1", res.Hits[0].ID)
	assert.Equal(t, 0.9, res.Hits[0].Score)
	assert.Equal(t, "rooftop", res.Hits[0].Content)
	assert.Equal(t, "1A", res.Hits[0].Metadata["scene"])
}

func TestSearchByEmbeddingDimensionCheck(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)
	_, err := s.SearchByEmbedding(context.Background(), "proj-a", make([]float32, 5), 10)
	require.Error(t, err)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestBatchSimilaritySearch(t *testing.T) {
	store := &fakeStore{searchHits: []graph.ScoredNode{
		{Node: graph.Node{ID: "doc-1", Properties: map[string]any{}}, Score: 0.7},
	}}
	s := newTestService(store, nil)

	res, err := s.BatchSimilaritySearch(context.Background(), "proj-a", [][]float32{
		make([]float32, 8),
		make([]float32, 3),
	}, 5)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.NotNil(t, res.Items[0].Results)
	assert.Len(t, res.Items[0].Results.Hits, 1)
	require.NotNil(t, res.Items[1].Error, "wrong-dimension query fails only its slot")
	assert.Equal(t, string(errs.CodeValidation), res.Items[1].Error.Code)
}

func TestCreateRelationshipValidation(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	_, err := s.CreateRelationship(context.Background(), "proj-a", "", "b", "LINKS", nil)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = s.CreateRelationship(context.Background(), "proj-a", "a", "b", "", nil)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	rel, err := s.CreateRelationship(context.Background(), "proj-a", "a", "b", "LINKS", nil)
	require.NoError(t, err)
	assert.Equal(t, "LINKS", rel.Type)
}

func TestQueryGraph(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	_, err := s.QueryGraph(context.Background(), "proj-a", "", nil)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	res, err := s.QueryGraph(context.Background(), "proj-a", "MATCH (n {project_id: $project_id}) RETURN n", nil)
	require.NoError(t, err)
	assert.Equal(t, "proj-a", res.Records[0]["project"])
}

func TestGetNodeNeighborsDefaultsDepth(t *testing.T) {
	s := newTestService(&fakeStore{}, nil)

	_, err := s.GetNodeNeighbors(context.Background(), "proj-a", "", 0)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = s.GetNodeNeighbors(context.Background(), "proj-a", "n1", 0)
	assert.NoError(t, err)
}

func TestStoreWorkflowData(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, nil)

	_, err := s.StoreWorkflowData(context.Background(), "proj-a", "", map[string]any{"k": "v"})
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = s.StoreWorkflowData(context.Background(), "proj-a", "wf-1", nil)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	node, err := s.StoreWorkflowData(context.Background(), "proj-a", "wf-1", map[string]any{"step": 3})
	require.NoError(t, err)
	assert.Equal(t, "node-1", node.ID)

	created := store.createdNodes[0]
	assert.Equal(t, []string{workflowLabel}, created.labels)
	assert.Equal(t, "wf-1", created.props["workflow_id"])
	assert.JSONEq(t, `{"step":3}`, created.props["data"].(string))
}

func TestStoreAgentMemory(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, nil)

	node, err := s.StoreAgentMemory(context.Background(), "proj-a", "agent-7", "", "saw a rooftop")
	require.NoError(t, err)
	assert.Equal(t, "node-1", node.ID)

	created := store.createdNodes[0]
	assert.Equal(t, []string{agentMemoryLabel}, created.labels)
	assert.Equal(t, "agent-7", created.props["agent_id"])
	assert.Equal(t, "observation", created.props["memory_type"], "memory type defaults")
	assert.Len(t, created.props["embedding"], 8, "memories are stored with their vector")
}
