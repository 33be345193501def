package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-quill/internal/client"
	"github.com/23skdu/longbow-quill/internal/config"
	"github.com/23skdu/longbow-quill/internal/segment"
	"github.com/23skdu/longbow-quill/internal/textio"
)

// filterBatchSize is the number of line segments processed per round.
const filterBatchSize = 1024

// sentenceSink receives each processed batch.
type sentenceSink interface {
	WriteBatch(offset int64, sentences []segment.Sentence) error
	Close() error
}

type textSink struct {
	w    *bufio.Writer
	proc *Processor
}

func (s *textSink) WriteBatch(_ int64, sentences []segment.Sentence) error {
	for _, line := range s.proc.Format(sentences) {
		if _, err := s.w.WriteString(line); err != nil {
			return err
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (s *textSink) Close() error { return s.w.Flush() }

type arrowSink struct {
	writer  *ipc.Writer
	builder *client.RecordBatchBuilder
}

func newArrowSink(w io.Writer) *arrowSink {
	alloc := memory.NewGoAllocator()
	return &arrowSink{
		writer:  ipc.NewWriter(w, ipc.WithSchema(client.TokenSchema), ipc.WithAllocator(alloc)),
		builder: client.NewRecordBatchBuilder(alloc),
	}
}

func (s *arrowSink) WriteBatch(offset int64, sentences []segment.Sentence) error {
	rec, err := s.builder.BuildTokenBatch(offset, sentences)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	defer rec.Release()
	return s.writer.Write(rec)
}

func (s *arrowSink) Close() error { return s.writer.Close() }

func newSink(format string, w io.Writer, proc *Processor) (sentenceSink, error) {
	switch format {
	case config.FormatText:
		return &textSink{w: bufio.NewWriter(w), proc: proc}, nil
	case config.FormatArrow:
		return newArrowSink(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// runFilter streams tagged lines from in through the processor into out.
// Long lines are cut at sentence ends first; every segment becomes one
// output sentence.
func runFilter(ctx context.Context, proc *Processor, lr *textio.LineReader, sink sentenceSink, fwd *client.Forwarder) error {
	var (
		batch  = make([]string, 0, filterBatchSize)
		offset int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sentences, err := proc.ProcessLines(ctx, batch)
		if err != nil {
			return fmt.Errorf("line %d: %w", lr.Line(), err)
		}
		if err := sink.WriteBatch(offset, sentences); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if fwd != nil {
			if err := fwd.Forward(ctx, offset, sentences); err != nil {
				log.Warn().Err(err).Int64("offset", offset).Msg("Skipping forward of batch")
			}
		}
		offset += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		seg, ok := lr.Next()
		if !ok {
			break
		}
		batch = append(batch, seg)
		if len(batch) == filterBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := lr.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	log.Info().Int64("sentences", offset).Int("lines", lr.Line()).Msg("Processed input")
	return sink.Close()
}
