package gateway

import (
	"sort"
	"sync"
)

// ToolCategory groups tools by function.
type ToolCategory string

const (
	// CategoryEmbedding is for embedding generation tools.
	CategoryEmbedding ToolCategory = "embedding"
	// CategoryDocument is for document storage tools.
	CategoryDocument ToolCategory = "document"
	// CategorySearch is for similarity search tools.
	CategorySearch ToolCategory = "search"
	// CategoryGraph is for graph query and traversal tools.
	CategoryGraph ToolCategory = "graph"
	// CategoryWorkflow is for workflow and agent state tools.
	CategoryWorkflow ToolCategory = "workflow"
	// CategorySystem is for operational tools.
	CategorySystem ToolCategory = "system"
)

// ToolMetadata describes one registered tool.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
}

// ToolRegistry tracks metadata for every registered tool.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolMetadata)}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns the metadata for a tool.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tool metadata sorted by name.
func (r *ToolRegistry) List() []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ListByCategory returns all tools in one category, sorted by name.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ToolMetadata, 0)
	for _, tool := range r.tools {
		if tool.Category == category {
			result = append(result, tool)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
