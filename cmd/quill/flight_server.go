package main

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-quill/internal/client"
)

type QuillFlightServer struct {
	flight.BaseFlightServer
	proc    *Processor
	alloc   memory.Allocator
	builder *client.RecordBatchBuilder
}

func NewQuillFlightServer(proc *Processor) *QuillFlightServer {
	alloc := memory.NewGoAllocator()
	return &QuillFlightServer{
		proc:    proc,
		alloc:   alloc,
		builder: client.NewRecordBatchBuilder(alloc),
	}
}

// DoExchange reads batches of tagged lines and answers each with a token
// batch. Sentence numbers run across the whole exchange.
func (s *QuillFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	ctx, span := tracer.Start(stream.Context(), "DoExchange", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "failed to read exchange: %v", err)
	}
	defer reader.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(client.TokenSchema), ipc.WithAllocator(s.alloc))
	defer func() { _ = writer.Close() }()

	var offset int64
	for reader.Next() {
		rec := reader.Record()
		lines, err := client.TextValues(rec)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "batch at sentence %d: %v", offset, err)
		}
		log.Debug().Int64("rows", rec.NumRows()).Int64("offset", offset).Msg("DoExchange received batch")

		sentences, err := s.proc.ProcessLines(ctx, lines)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to process batch: %v", err)
		}
		out, err := s.builder.BuildTokenBatch(offset, sentences)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to build token batch: %v", err)
		}
		offset += int64(len(sentences))
		span.SetAttributes(attribute.Int64("sentence_count", offset))
		if out == nil {
			continue
		}
		err = writer.Write(out)
		out.Release()
		if err != nil {
			return err
		}
	}
	return reader.Err()
}

func StartFlightServer(ctx context.Context, addr string, proc *Processor) error {
	// Create the generic Flight Server which manages the GRPC lifecycle
	server := flight.NewFlightServer()
	server.RegisterFlightService(NewQuillFlightServer(proc))

	if err := server.Init(addr); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Str("addr", addr).Msg("Starting Quill Flight Server")
	return server.Serve()
}
