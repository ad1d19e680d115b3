package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mtlprog/agentdesk/internal/llm"
	"github.com/panjf2000/ants/v2"
)

// EmbedBatchSize is the number of chunks sent to the embedder per call.
const EmbedBatchSize = 16

// EmbedAll embeds texts in batches submitted to pool and returns vectors in input order.
func EmbedAll(ctx context.Context, pool *ants.Pool, embedder llm.Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(texts))
		batch := texts[start:end]
		offset := start

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}
			out, err := embedder.EmbedTexts(ctx, batch)
			if err != nil {
				setErr(fmt.Errorf("embed batch at %d: %w", offset, err))
				return
			}
			if len(out) != len(batch) {
				setErr(fmt.Errorf("embed batch at %d: got %d vectors for %d texts", offset, len(out), len(batch)))
				return
			}
			copy(vectors[offset:], out)
		})
		if err != nil {
			wg.Done()
			setErr(fmt.Errorf("submit embed batch: %w", err))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
