package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-quill/internal/cache"
	"github.com/23skdu/longbow-quill/internal/client"
	"github.com/23skdu/longbow-quill/internal/config"
	"github.com/23skdu/longbow-quill/internal/dict"
	"github.com/23skdu/longbow-quill/internal/postprocess"
	"github.com/23skdu/longbow-quill/internal/segment"
	"github.com/23skdu/longbow-quill/internal/textio"
)

var (
	configPath    = flag.String("config", "", "Path to YAML config file")
	dictPath      = flag.String("dict", "punctuation.txt", "Punctuation list or compiled .cbor snapshot (empty disables the pass)")
	inputPath     = flag.String("input", "-", "Input file (- for stdin)")
	outputPath    = flag.String("output", "-", "Output file (- for stdout)")
	inputCharset  = flag.String("input-charset", "", "Input charset (e.g. GBK, GB18030); default UTF-8")
	outputCharset = flag.String("output-charset", "", "Output charset; default UTF-8")
	normalize     = flag.Bool("normalize", false, "Apply Unicode NFC to input lines")
	separator     = flag.String("separator", "_", "Word/tag separator")
	outputFormat  = flag.String("format", config.FormatText, "Output format: text or arrow")
	listenAddr    = flag.String("listen", "", "Address to listen on for HTTP Server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for Flight Server (e.g. :9090)")
	maxConcurrent = flag.Int("max-concurrent", 16384, "Maximum number of sentences processed concurrently by the servers")
	workers       = flag.Int("workers", 8, "Worker goroutines per batch")
	serverAddr    = flag.String("server", "", "Longbow server address to forward token batches to (e.g., localhost:3000)")
	datasetName   = flag.String("dataset", "quill_tokens", "Target dataset name on server")
	cacheBackend  = flag.String("cache", config.CacheNone, "Sentence cache: none, memory or redis")
	redisAddr     = flag.String("redis", "localhost:6379", "Redis address for -cache=redis")
	cacheTTL      = flag.Duration("cache-ttl", time.Hour, "Redis entry lifetime")
	logLevel      = flag.String("log-level", "info", "Log level")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	loremLines    = flag.Int("lorem", 0, "Process N generated lines instead of reading input")
	duration      = flag.Duration("duration", 0, "Run soak test for specified duration (e.g. 10s, 20m)")
)

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage:\n  %s [flags]\n  %s compile <entries.txt> <snapshot.cbor>\n\nFlags:\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Usage = usage
	flag.Parse()

	if flag.Arg(0) == "compile" {
		if flag.NArg() != 3 {
			usage()
			os.Exit(2)
		}
		if _, err := dict.Compile(flag.Arg(1), flag.Arg(2)); err != nil {
			log.Fatal().Err(err).Msg("Failed to compile dictionary")
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Telemetry.Enabled {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("quill failed")
		stop()
		os.Exit(1)
	}
}

// loadConfig layers the optional config file and every flag set on the
// command line over the defaults.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dict":
			cfg.Dict.Path = *dictPath
		case "input":
			cfg.Input.Path = *inputPath
		case "output":
			cfg.Output.Path = *outputPath
		case "input-charset":
			cfg.Input.Charset = *inputCharset
		case "output-charset":
			cfg.Output.Charset = *outputCharset
		case "normalize":
			cfg.Input.Normalize = *normalize
		case "separator":
			cfg.Input.Separator = *separator
		case "format":
			cfg.Output.Format = *outputFormat
		case "listen":
			cfg.Server.Listen = *listenAddr
		case "flight":
			cfg.Server.Flight = *flightAddr
		case "max-concurrent":
			cfg.Server.MaxConcurrent = *maxConcurrent
		case "workers":
			cfg.Server.Workers = *workers
		case "server":
			cfg.Forward.Addr = *serverAddr
		case "dataset":
			cfg.Forward.Dataset = *datasetName
		case "cache":
			cfg.Cache.Backend = *cacheBackend
		case "redis":
			cfg.Cache.Addr = *redisAddr
		case "cache-ttl":
			cfg.Cache.TTL = *cacheTTL
		case "log-level":
			cfg.Log.Level = *logLevel
		case "otel":
			cfg.Telemetry.Enabled = *enableOTel
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	pass, err := openPass(cfg.Dict.Path)
	if err != nil {
		return err
	}

	sentenceCache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	proc := NewProcessor(pass, sentenceCache, cfg.Separator(), cfg.Server.Workers)

	var fwd *client.Forwarder
	if cfg.Forward.Addr != "" {
		fc, err := client.NewFlightClient(cfg.Forward.Addr)
		if err != nil {
			return fmt.Errorf("failed to create flight client: %w", err)
		}
		defer func() {
			if err := fc.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close flight client")
			}
		}()
		log.Info().Str("addr", cfg.Forward.Addr).Str("dataset", cfg.Forward.Dataset).Msg("Forwarding token batches to Longbow")
		fwd = client.NewForwarder(fc, cfg.Forward.Dataset, client.NewCircuitBreaker(cfg.Forward.MaxFailures, cfg.Forward.Cooldown))
	}

	if cfg.Server.Listen == "" && cfg.Server.Flight == "" {
		if *loremLines > 0 {
			return runSoak(ctx, proc, segment.GenerateLorem(*loremLines, time.Now().UnixNano()), *duration)
		}
		return runFile(ctx, cfg, proc, fwd)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Listen != "" {
		var f Forwarder
		if fwd != nil {
			f = fwd
		}
		srv := NewServer(proc, f, cfg.Server.MaxConcurrent, pass.Enabled())
		g.Go(func() error { return startServer(gctx, cfg.Server.Listen, srv) })
	}
	if cfg.Server.Flight != "" {
		g.Go(func() error { return StartFlightServer(gctx, cfg.Server.Flight, proc) })
	}
	return g.Wait()
}

// openPass loads the dictionary behind the punctuation pass. An empty path
// leaves the pass disabled.
func openPass(path string) (*postprocess.PunctuationPass, error) {
	if path == "" {
		log.Warn().Msg("No punctuation dictionary configured, punctuation pass disabled")
		return postprocess.NewPunctuationPass(nil), nil
	}
	trie, err := dict.Open(path)
	if err != nil {
		return nil, err
	}
	return postprocess.NewPunctuationPass(trie), nil
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.SentenceCache, func(), error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMapCache(), func() {}, nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.Addr, DB: cfg.DB, TTL: cfg.TTL})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Addr).Dur("ttl", cfg.TTL).Msg("Using Redis sentence cache")
		return rc, func() { _ = rc.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func runFile(ctx context.Context, cfg config.Config, proc *Processor, fwd *client.Forwarder) error {
	in, err := textio.OpenInput(cfg.Input.Path, cfg.Input.Charset)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := textio.OpenOutput(cfg.Output.Path, cfg.Output.Charset)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	sink, err := newSink(cfg.Output.Format, out, proc)
	if err != nil {
		_ = out.Close()
		return err
	}

	start := time.Now()
	err = runFilter(ctx, proc, textio.NewLineReader(in, cfg.Input.Normalize), sink, fwd)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("Interrupted")
		return nil
	}
	if err == nil {
		log.Debug().Dur("elapsed", time.Since(start)).Msg("Filter finished")
	}
	return err
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("quill"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
