package store

// MemoryChunk is the unit of storage and retrieval: a bounded fragment of an
// ingested document, partitioned by project. Chunks are immutable once stored.
type MemoryChunk struct {
	// ID is assigned by the store on upsert.
	ID string

	ProjectID string
	Text      string
	Tags      []string
	Embedding []float32

	CreatedTs int64
}

// SearchHit is a transient, query-scoped projection of a MemoryChunk with a
// relevance score. It is never persisted.
type SearchHit struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
