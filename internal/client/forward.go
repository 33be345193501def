package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-quill/internal/segment"
)

// ErrCircuitOpen is returned when forwarding is suspended by the breaker.
var ErrCircuitOpen = errors.New("forwarding suspended: circuit open")

// Putter is the part of FlightClient the Forwarder needs.
type Putter interface {
	DoPut(ctx context.Context, datasetName string, record arrow.RecordBatch) error
}

// Forwarder ships processed sentences to a Longbow dataset.
type Forwarder struct {
	putter  Putter
	dataset string
	breaker *CircuitBreaker
	builder *RecordBatchBuilder
}

// NewForwarder wraps putter. A nil breaker never trips.
func NewForwarder(putter Putter, dataset string, breaker *CircuitBreaker) *Forwarder {
	return &Forwarder{
		putter:  putter,
		dataset: dataset,
		breaker: breaker,
		builder: NewRecordBatchBuilder(memory.NewGoAllocator()),
	}
}

// Forward sends sentences as one token batch, numbering them from offset.
func (f *Forwarder) Forward(ctx context.Context, offset int64, sentences []segment.Sentence) error {
	rec, err := f.builder.BuildTokenBatch(offset, sentences)
	if err != nil {
		return fmt.Errorf("failed to build token batch: %w", err)
	}
	if rec == nil {
		return nil
	}
	defer rec.Release()

	if f.breaker != nil && !f.breaker.Allow() {
		return ErrCircuitOpen
	}

	if err := f.putter.DoPut(ctx, f.dataset, rec); err != nil {
		if f.breaker != nil {
			f.breaker.Failure()
			log.Warn().Err(err).Str("breaker", f.breaker.State().String()).Msg("Forward to Longbow failed")
		}
		return fmt.Errorf("failed to forward %d sentences: %w", len(sentences), err)
	}
	if f.breaker != nil {
		f.breaker.Success()
	}
	return nil
}
