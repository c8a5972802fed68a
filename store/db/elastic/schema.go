package elastic

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// EnsureSchema creates the memory index if it does not already exist.
// Concurrent callers may both attempt creation; the loser's
// resource_already_exists_exception is treated as success.
func (d *DB) EnsureSchema(ctx context.Context) error {
	resp, err := d.do(ctx, http.MethodHead, nil)
	if err == nil {
		return nil
	}
	if resp != nil && resp.status != http.StatusNotFound {
		return errors.Wrapf(err, "failed to check index %s", d.index)
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"project_id": map[string]any{"type": "keyword"},
				"text":       map[string]any{"type": "text"},
				"chunk_id":   map[string]any{"type": "keyword"},
				"tags":       map[string]any{"type": "keyword"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       d.dims,
					"index":      true,
					"similarity": "cosine",
				},
				"created_at": map[string]any{"type": "date"},
			},
		},
	}

	resp, err = d.do(ctx, http.MethodPut, mapping)
	if err != nil {
		if resp != nil && resp.errorType() == "resource_already_exists_exception" {
			return nil
		}
		return errors.Wrapf(err, "failed to create index %s", d.index)
	}
	return nil
}
