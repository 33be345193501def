package postprocess

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sentencesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_punctuation_sentences_total",
		Help: "Total number of sentences run through the punctuation pass",
	})

	punctuationMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_punctuation_merges_total",
		Help: "Total number of token runs merged into one punctuation token",
	})

	tokensAbsorbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_punctuation_tokens_absorbed_total",
		Help: "Total number of tokens removed by punctuation merges",
	})

	punctuationTagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_punctuation_tagged_total",
		Help: "Total number of single tokens retagged as punctuation without merging",
	})
)
