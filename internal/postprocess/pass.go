// Package postprocess holds the passes that run over a tagged sentence after
// the tagger and before output.
package postprocess

import (
	"context"
	"fmt"

	"github.com/23skdu/longbow-quill/internal/segment"
	"golang.org/x/sync/errgroup"
)

// Pass rewrites one sentence in place. Implementations must be safe for
// concurrent use on different sentences.
type Pass interface {
	Name() string
	Process(sentence *segment.Sentence) error
}

// Pipeline runs passes in order.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline. Nil passes are dropped.
func NewPipeline(passes ...Pass) *Pipeline {
	p := &Pipeline{}
	for _, pass := range passes {
		if pass != nil {
			p.passes = append(p.passes, pass)
		}
	}
	return p
}

func (p *Pipeline) Name() string { return "pipeline" }

// Len returns the number of passes.
func (p *Pipeline) Len() int { return len(p.passes) }

// Process runs every pass over sentence, stopping at the first error.
func (p *Pipeline) Process(sentence *segment.Sentence) error {
	for _, pass := range p.passes {
		if err := pass.Process(sentence); err != nil {
			return fmt.Errorf("%s pass: %w", pass.Name(), err)
		}
	}
	return nil
}

// ProcessBatch runs pass over every sentence with at most workers goroutines.
// Sentences are independent, so the only shared state is the read-only
// dictionary behind the pass.
func ProcessBatch(ctx context.Context, pass Pass, sentences []segment.Sentence, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range sentences {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := pass.Process(&sentences[i]); err != nil {
				return fmt.Errorf("sentence %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
