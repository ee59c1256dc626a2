package embedding

import (
	"context"
	"fmt"

	"go.dataops.dev/workerpool"
)

// WorkerPoolGenerator dispatches embedding requests to an opaque
// external process through workerpool, so a slow or crashing model
// process can't stall the adapters calling it. The process on the
// other end of the pipe is expected to read a line "ref payload\n"
// and write back one line containing a JSON array of floats; ref is
// ignored by this generator (one fixed model per pool).
type WorkerPoolGenerator struct {
	pool *workerpool.Pool
	dim  int
}

// NewWorkerPoolGenerator wraps an already-started process-flavor pool.
// dim is the model's known embedding dimension, used for the
// zero-vector fallback in EmbedEntity and exposed via Dimension.
func NewWorkerPoolGenerator(pool *workerpool.Pool, dim int) *WorkerPoolGenerator {
	return &WorkerPoolGenerator{pool: pool, dim: dim}
}

func (g *WorkerPoolGenerator) Dimension() int { return g.dim }

// Embed dispatches text to the pool and decodes the response as a
// JSON float array task result; the process wrapper owns the actual
// wire parsing (see ProcessHandle.Dispatch), this just shapes the
// request/result types workerpool expects.
func (g *WorkerPoolGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	id, err := g.pool.SubmitProcess(workerpool.ProcessSpec{
		Ref:     "embed",
		Payload: []byte(text),
	}, workerpool.Options{Priority: workerpool.PriorityNormal})
	if err != nil {
		return nil, fmt.Errorf("embedding: submit: %w", err)
	}
	result, err := g.pool.GetResult(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("embedding: get result: %w", err)
	}
	raw, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("embedding: unexpected result type %T", result)
	}
	return decodeVector(raw)
}
