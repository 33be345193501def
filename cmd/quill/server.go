package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-quill/internal/client"
	"github.com/23skdu/longbow-quill/internal/postprocess"
	"github.com/23skdu/longbow-quill/internal/segment"
)

var (
	sentencesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_sentences_served_total",
		Help: "The total number of sentences returned by the HTTP server",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quill_request_duration_seconds",
		Help:    "Time spent processing requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

var tracer = otel.Tracer("quill-server")

// errTooLarge is returned by admit for batches the semaphore can never hold.
var errTooLarge = errors.New("batch exceeds max concurrent sentences")

// Forwarder is the part of client.Forwarder the server uses.
type Forwarder interface {
	Forward(ctx context.Context, offset int64, sentences []segment.Sentence) error
}

type Server struct {
	proc      *Processor
	forwarder Forwarder
	alloc     memory.Allocator
	builder   *client.RecordBatchBuilder
	sem       *semaphore.Weighted
	capacity  int64
	enabled   bool
}

func NewServer(proc *Processor, fwd Forwarder, maxConcurrent int, passEnabled bool) *Server {
	alloc := memory.NewGoAllocator()
	return &Server{
		proc:      proc,
		forwarder: fwd,
		alloc:     alloc,
		builder:   client.NewRecordBatchBuilder(alloc),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		capacity:  int64(maxConcurrent),
		enabled:   passEnabled,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/process/arrow", s.handleProcessArrow)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func startServer(ctx context.Context, addr string, srv *Server) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Bool("punctuation", srv.enabled).Msg("Starting Quill Server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// admit blocks until weight sentences may be processed. A weight above the
// semaphore size fails at once with errTooLarge.
func (s *Server) admit(ctx context.Context, weight int64) (func(), error) {
	if weight > s.capacity {
		return nil, fmt.Errorf("%w: %d > %d", errTooLarge, weight, s.capacity)
	}
	if err := s.sem.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	return func() { s.sem.Release(weight) }, nil
}

func (s *Server) forward(ctx context.Context, sentences []segment.Sentence) {
	if s.forwarder == nil {
		return
	}
	if err := s.forwarder.Forward(ctx, 0, sentences); err != nil {
		log.Error().Err(err).Msg("Error forwarding sentences to Longbow")
	}
}

// handleProcess takes a CBOR array of tagged lines and answers with the
// processed lines in the same order.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleProcess", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("process").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var lines []string
	if err := cbor.NewDecoder(r.Body).Decode(&lines); err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (CBOR decode): %v", err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("sentence_count", len(lines)))

	if len(lines) > 0 {
		release, err := s.admit(ctx, int64(len(lines)))
		if err != nil {
			log.Error().Err(err).Msg("Failed to acquire semaphore")
			http.Error(w, admitError(err), admitStatus(err))
			return
		}
		defer release()
	}

	sentences, err := s.proc.ProcessLines(ctx, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process failed")
		http.Error(w, fmt.Sprintf("Processing failed: %v", err), statusFor(err))
		return
	}
	sentencesServed.Add(float64(len(sentences)))
	s.forward(ctx, sentences)

	data, err := cbor.Marshal(s.proc.Format(sentences))
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleProcessArrow reads an Arrow IPC stream of tagged lines. Every input
// batch is admitted and processed on its own; the answer is one token batch
// covering all of them, numbered from zero.
func (s *Server) handleProcessArrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleProcessArrow", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("process_arrow").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reader, err := ipc.NewReader(r.Body, ipc.WithAllocator(s.alloc))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create IPC reader: %v", err), http.StatusBadRequest)
		return
	}
	defer reader.Release()

	var (
		results []segment.Sentence
		offset  int64
	)
	for reader.Next() {
		lines, err := client.TextValues(reader.Record())
		if err != nil {
			log.Warn().Err(err).Msg("Skipping batch without a text column")
			continue
		}
		if len(lines) == 0 {
			continue
		}

		release, err := s.admit(ctx, int64(len(lines)))
		if err != nil {
			log.Error().Err(err).Msg("Failed to acquire semaphore for arrow batch")
			http.Error(w, admitError(err), admitStatus(err))
			return
		}
		sentences, err := s.proc.ProcessLines(ctx, lines)
		release()
		if err != nil {
			span.RecordError(err)
			http.Error(w, fmt.Sprintf("Processing failed: %v", err), statusFor(err))
			return
		}
		s.forward(ctx, sentences)
		results = append(results, sentences...)
		offset += int64(len(sentences))
	}
	if err := reader.Err(); err != nil {
		log.Error().Err(err).Msg("Error reading Arrow stream")
		http.Error(w, "Stream error", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int64("sentence_count", offset))
	sentencesServed.Add(float64(offset))

	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
	writer := ipc.NewWriter(w, ipc.WithSchema(client.TokenSchema), ipc.WithAllocator(s.alloc))
	rec, err := s.builder.BuildTokenBatch(0, results)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to build response: %v", err), http.StatusInternalServerError)
		return
	}
	if rec != nil {
		defer rec.Release()
		if err := writer.Write(rec); err != nil {
			log.Error().Err(err).Msg("Failed to write Arrow response")
			return
		}
	}
	if err := writer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Arrow response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func admitStatus(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusServiceUnavailable
}

func admitError(err error) string {
	if errors.Is(err, errTooLarge) {
		return err.Error()
	}
	return "Server busy"
}

// statusFor maps processing errors to HTTP codes. A nil token can only come
// from a bug on our side of the wire.
func statusFor(err error) int {
	switch {
	case errors.Is(err, postprocess.ErrNilToken):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
