// Package vector maintains the similarity-searchable mirror of memory
// content. It is written alongside the record store with no cross-store
// transaction; divergence between the two is possible and tolerated.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/cortexmem/cortex/internal/model"
)

// Result is one similarity hit, ordered by ascending distance.
type Result struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index is the vector mirror consumed by the ingestion and retrieval paths.
type Index interface {
	Upsert(ctx context.Context, id, content string, metadata model.Metadata) error
	// Query returns up to k results by ascending distance. maxDistance,
	// when positive, is applied as a post-filter: the underlying index has
	// no native distance threshold.
	Query(ctx context.Context, query string, k int, maxDistance float64) ([]Result, error)
	Delete(ctx context.Context, id string) error
	// Has reports whether a mirror record exists for the id.
	Has(ctx context.Context, id string) bool
	Count() int
	Close() error
}

// ChromemIndex is an Index backed by an embedded chromem-go database
// persisted on disk.
type ChromemIndex struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemIndex opens or creates the persistent vector database at path
// and its single memory collection.
func NewChromemIndex(path, collection string, embed chromem.EmbeddingFunc) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &ChromemIndex{db: db, col: col}, nil
}

// Upsert writes or replaces the mirror record for a memory. Non-scalar
// metadata values are stringified; the mirror keeps only flat scalars.
func (x *ChromemIndex) Upsert(ctx context.Context, id, content string, metadata model.Metadata) error {
	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: flattenMetadata(metadata),
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("upsert vector record: %w", err)
	}
	return nil
}

// Query embeds the query text and returns the k nearest records by
// ascending distance (1 - cosine similarity). maxDistance > 0 drops results
// beyond the threshold after retrieval.
func (x *ChromemIndex) Query(ctx context.Context, query string, k int, maxDistance float64) ([]Result, error) {
	count := x.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	if k > count {
		k = count
	}

	hits, err := x.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		distance := 1 - float64(h.Similarity)
		if maxDistance > 0 && distance > maxDistance {
			continue
		}
		results = append(results, Result{
			ID:       h.ID,
			Content:  h.Content,
			Distance: distance,
			Metadata: h.Metadata,
		})
	}
	return results, nil
}

// Delete removes the mirror record for a memory. Deleting an id that was
// never mirrored is not an error.
func (x *ChromemIndex) Delete(ctx context.Context, id string) error {
	if err := x.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete vector record: %w", err)
	}
	return nil
}

// Has reports whether a mirror record exists for the id.
func (x *ChromemIndex) Has(ctx context.Context, id string) bool {
	_, err := x.col.GetByID(ctx, id)
	return err == nil
}

// Count returns the number of mirror records.
func (x *ChromemIndex) Count() int {
	return x.col.Count()
}

// Close is a no-op; chromem persists on write.
func (x *ChromemIndex) Close() error { return nil }

func flattenMetadata(m model.Metadata) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'g', -1, 64)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out
}
