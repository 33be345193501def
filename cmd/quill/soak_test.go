package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-quill/internal/cache"
	"github.com/23skdu/longbow-quill/internal/segment"
)

func TestRunSoak_Once(t *testing.T) {
	mc := cache.NewMapCache()
	proc := newTestProcessor(t, mc)
	lines := segment.GenerateLorem(20, 1)

	require.NoError(t, runSoak(context.Background(), proc, lines, 0))
	assert.LessOrEqual(t, mc.Size(), 20)
	assert.Positive(t, mc.Size())
}

func TestRunSoak_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runSoak(ctx, newTestProcessor(t, nil), segment.GenerateLorem(5, 1), 0))
}
