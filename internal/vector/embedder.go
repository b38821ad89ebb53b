package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// NewEmbeddingFunc selects the embedding provider for the mirror.
// "ollama" and "openai" use chromem's built-in clients; "local" (the
// default) is a deterministic hash embedder that needs no network and is
// therefore also what the tests run against.
func NewEmbeddingFunc(provider, embedModel, baseURL string) (chromem.EmbeddingFunc, error) {
	switch provider {
	case "", "local":
		return LocalEmbeddingFunc(256), nil
	case "ollama":
		if embedModel == "" {
			embedModel = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(embedModel, baseURL), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai embedder requires OPENAI_API_KEY")
		}
		return chromem.NewEmbeddingFuncOpenAI(key, chromem.EmbeddingModelOpenAI3Small), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", provider)
	}
}

// LocalEmbeddingFunc returns a deterministic bag-of-words embedder. Each
// token contributes a pseudo-random unit pattern seeded by its hash, so
// texts sharing tokens land near each other under cosine similarity. Not a
// semantic model; it keeps similarity search self-contained when no
// embedding provider is configured.
func LocalEmbeddingFunc(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		for _, tok := range tokenize(text) {
			h := fnv.New64a()
			h.Write([]byte(tok))
			seed := h.Sum64()
			for i := 0; i < dims; i++ {
				seed = seed*6364136223846793005 + 1442695040888963407
				vec[i] += float32(int64(seed)) / float32(math.MaxInt64)
			}
		}
		return normalize(vec), nil
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; give empty text a fixed direction.
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i, v := range vec {
		vec[i] = v / n
	}
	return vec
}
