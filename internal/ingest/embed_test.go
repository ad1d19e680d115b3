package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls   atomic.Int32
	failOn  string
	dropOne bool
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if t == f.failOn {
			return nil, errors.New("provider down")
		}
		out = append(out, []float32{float32(len(t))})
	}
	if f.dropOne {
		out = out[1:]
	}
	return out, nil
}

func newTestPool(t *testing.T) *ants.Pool {
	t.Helper()
	pool, err := ants.NewPool(3)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return pool
}

func TestEmbedAll_PreservesOrder(t *testing.T) {
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}
	embedder := &fakeEmbedder{}

	vectors, err := EmbedAll(context.Background(), newTestPool(t), embedder, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 40)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i + 1)}, v)
	}
	assert.Equal(t, int32(3), embedder.calls.Load())
}

func TestEmbedAll_Error(t *testing.T) {
	texts := []string{"a", "b", "boom", "c"}

	_, err := EmbedAll(context.Background(), newTestPool(t), &fakeEmbedder{failOn: "boom"}, texts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestEmbedAll_CountMismatch(t *testing.T) {
	_, err := EmbedAll(context.Background(), newTestPool(t), &fakeEmbedder{dropOne: true}, []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedAll_Empty(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors, err := EmbedAll(context.Background(), newTestPool(t), embedder, nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, embedder.calls.Load())
}
