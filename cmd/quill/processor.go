package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/23skdu/longbow-quill/internal/cache"
	"github.com/23skdu/longbow-quill/internal/postprocess"
	"github.com/23skdu/longbow-quill/internal/segment"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_sentence_cache_hits_total",
		Help: "Sentences served from the sentence cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_sentence_cache_misses_total",
		Help: "Sentences that had to be processed",
	})
)

// Processor turns raw tagged lines into processed sentences.
type Processor struct {
	pass      postprocess.Pass
	cache     cache.SentenceCache
	separator rune
	workers   int
}

// NewProcessor creates a processor. sentenceCache may be nil.
func NewProcessor(pass postprocess.Pass, sentenceCache cache.SentenceCache, separator rune, workers int) *Processor {
	return &Processor{
		pass:      pass,
		cache:     sentenceCache,
		separator: separator,
		workers:   workers,
	}
}

// ProcessLines parses every line and runs the pipeline over the sentences
// the cache does not already hold. The result is in input order.
func (p *Processor) ProcessLines(ctx context.Context, lines []string) ([]segment.Sentence, error) {
	out := make([]segment.Sentence, len(lines))
	var (
		misses  []segment.Sentence
		missIdx []int
	)
	for i, line := range lines {
		if p.cache != nil {
			if s, ok := p.cache.Get(ctx, line); ok {
				out[i] = s
				cacheHits.Inc()
				continue
			}
			cacheMisses.Inc()
		}
		misses = append(misses, segment.Parse(line, p.separator))
		missIdx = append(missIdx, i)
	}

	if err := postprocess.ProcessBatch(ctx, p.pass, misses, p.workers); err != nil {
		return nil, err
	}

	for j, s := range misses {
		i := missIdx[j]
		out[i] = s
		if p.cache != nil {
			p.cache.Put(ctx, lines[i], s)
		}
	}
	return out, nil
}

// Format renders sentences back to tagged lines.
func (p *Processor) Format(sentences []segment.Sentence) []string {
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Format(p.separator)
	}
	return lines
}
