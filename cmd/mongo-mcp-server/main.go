// Command mongo-mcp-server exposes one MongoDB session to MCP clients as
// six tools: connect, disconnect, create, read, update and delete.
//
// The server runs over stdio by default, making it usable from any
// MCP-capable client; -transport sse or http serves it over the network.
// Logs go to stderr.
//
// Usage:
//
//	mongo-mcp-server [options]
//
// Options:
//
//	-config string           YAML configuration file (env MONGO_MCP_CONFIG)
//	-transport string        stdio, sse or http
//	-addr string             listen address for sse and http
//	-log-level string        debug, info, warn or error
//	-log-format string       text or json
//	-mongo-uri string        connect to this URI at startup
//	-mongo-database string   database for -mongo-uri
//	-metrics-addr string     serve Prometheus metrics on this address
//	-lang string             language of result messages: en or zh
//	-print-config            print the effective configuration and exit
//	-version                 show version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/mongo-mcp/config"
	"github.com/GoCodeAlone/mongo-mcp/crud"
	mcpserver "github.com/GoCodeAlone/mongo-mcp/mcp"
	"github.com/GoCodeAlone/mongo-mcp/metrics"
	"github.com/GoCodeAlone/mongo-mcp/observability/tracing"
	"github.com/GoCodeAlone/mongo-mcp/session"
	"github.com/GoCodeAlone/mongo-mcp/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mongo-mcp-server: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	fs            *flag.FlagSet
	configPath    *string
	transport     *string
	addr          *string
	logLevel      *string
	logFormat     *string
	mongoURI      *string
	mongoDatabase *string
	metricsAddr   *string
	language      *string
	printConfig   *bool
	showVersion   *bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	fs := flag.NewFlagSet("mongo-mcp-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &flags{
		fs:            fs,
		configPath:    fs.String("config", "", "YAML configuration file (env MONGO_MCP_CONFIG)"),
		transport:     fs.String("transport", "", "MCP transport: stdio, sse or http"),
		addr:          fs.String("addr", "", "Listen address for the sse and http transports"),
		logLevel:      fs.String("log-level", "", "Log level: debug, info, warn or error"),
		logFormat:     fs.String("log-format", "", "Log format: text or json"),
		mongoURI:      fs.String("mongo-uri", "", "Connect to this URI at startup"),
		mongoDatabase: fs.String("mongo-database", "", "Database selected by -mongo-uri"),
		metricsAddr:   fs.String("metrics-addr", "", "Serve Prometheus metrics on this address"),
		language:      fs.String("lang", "", "Language of result messages: en or zh"),
		printConfig:   fs.Bool("print-config", false, "Print the effective configuration and exit"),
		showVersion:   fs.Bool("version", false, "Show version and exit"),
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	*f.configPath = envOrFlag("MONGO_MCP_CONFIG", f.configPath)
	return f, nil
}

// envOrFlag returns the flag value when it was given, else the environment
// variable.
func envOrFlag(envKey string, flagVal *string) string {
	if flagVal != nil && *flagVal != "" {
		return *flagVal
	}
	return os.Getenv(envKey)
}

// apply copies every explicitly set flag onto cfg. Flags win over the file
// and the environment.
func (f *flags) apply(cfg *config.Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "transport":
			cfg.Server.Transport = *f.transport
		case "addr":
			cfg.Server.Addr = *f.addr
		case "log-level":
			cfg.Log.Level = *f.logLevel
		case "log-format":
			cfg.Log.Format = *f.logFormat
		case "mongo-uri":
			cfg.Mongo.AutoConnect.URI = *f.mongoURI
		case "mongo-database":
			cfg.Mongo.AutoConnect.Database = *f.mongoDatabase
		case "metrics-addr":
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = *f.metricsAddr
		case "lang":
			cfg.Server.Language = *f.language
		}
	})
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *f.showVersion {
		fmt.Fprintf(stdout, "mongo-mcp-server %s\n", mcpserver.Version)
		return nil
	}

	cfg, err := config.LoadFromFile(*f.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *f.printConfig {
		data, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("render configuration: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))
	logger := newLogger(stderr, cfg.Log.Format, level)

	return serve(ctx, cfg, *f.configPath, f.apply, level, logger, stdin, stdout)
}

// serve runs the configured transport until ctx is done. overrides is
// re-applied to every reloaded configuration so flags keep precedence.
func serve(ctx context.Context, cfg *config.Config, configPath string, overrides func(*config.Config), level *slog.LevelVar, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opTracer *tracing.OperationTracer
	if cfg.Tracing.Enabled {
		tp, err := tracing.NewProvider(ctx, tracing.Config{
			Endpoint:       cfg.Tracing.Endpoint,
			ServiceName:    cfg.Server.Name,
			ServiceVersion: cfg.Server.Version,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := tp.Shutdown(sctx); err != nil {
				logger.Warn("tracer shutdown failed", "err", err)
			}
		}()
		opTracer = tracing.NewOperationTracer(tp.Tracer())
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_rate", cfg.Tracing.SampleRate)
	}

	collector := metrics.NewWithConfig(metrics.Config{
		Namespace:      cfg.Metrics.Namespace,
		Path:           cfg.Metrics.Path,
		ProcessMetrics: true,
	})

	dialer := store.NewDialer(store.Options{
		AppName:                cfg.Mongo.AppName,
		ConnectTimeout:         cfg.Mongo.ConnectTimeout,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
		OperationTimeout:       cfg.Mongo.OperationTimeout,
	})
	sessions := session.NewManager(dialer,
		session.WithLogger(logger),
		session.WithStateHook(func(st session.Status) { collector.SessionChanged(st.Connected) }),
	)
	svc := crud.NewService(sessions,
		crud.WithLogger(logger),
		crud.WithObserver(collector),
		crud.WithOperationTimeout(cfg.Mongo.OperationTimeout),
		crud.WithTracer(opTracer),
		crud.WithLanguage(language.Make(cfg.Server.Language)),
	)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if _, err := sessions.Release(sctx); err != nil {
			logger.Warn("closing store session failed", "err", err)
		}
	}()

	if cfg.Mongo.AutoConnect.URI != "" {
		autoConnect(ctx, svc, cfg.Mongo.AutoConnect, logger)
	}

	srv := mcpserver.NewServer(svc,
		mcpserver.WithLogger(logger),
		mcpserver.WithImplementation(cfg.Server.Name, cfg.Server.Version),
		mcpserver.WithBaseURL(cfg.Server.BaseURL),
		mcpserver.WithRateLimit(cfg.Server.RateLimit),
		mcpserver.WithJWTSecret(cfg.Server.JWTSecret),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metricsSrv := collector.NewServer(cfg.Metrics.Addr)
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr, "path", collector.Path())
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return metricsSrv.Shutdown(sctx)
		})
	}

	if configPath != "" {
		running := *cfg
		r := &reloader{current: &running, overrides: overrides, level: level, logger: logger}
		watcher := config.NewWatcher(config.NewFileSource(configPath),
			func(ev config.ChangeEvent) { r.apply(ev.Config) },
			config.WithWatchLogger(logger),
		)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	switch cfg.Server.Transport {
	case "stdio":
		g.Go(func() error {
			defer cancel()
			return srv.ServeStdio(gctx, stdin, stdout)
		})
	default:
		g.Go(func() error {
			defer cancel()
			if cfg.Server.Transport == "sse" {
				return srv.ServeSSE(cfg.Server.Addr)
			}
			return srv.ServeHTTP(cfg.Server.Addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}

// autoConnect opens the configured session before serving. A failure is
// logged and the server starts disconnected.
func autoConnect(ctx context.Context, svc *crud.Service, ac config.AutoConnectConfig, logger *slog.Logger) {
	res := svc.Invoke(ctx, crud.OpConnect, map[string]any{
		crud.ArgConnectionString: ac.URI,
		crud.ArgDatabaseName:     ac.Database,
	})
	if !res.OK() {
		logger.Warn("startup connect failed; serving without a session",
			"target", store.RedactURI(ac.URI), "kind", res.ErrorKind, "err", res.Cause)
	}
}

// reloader applies a reloaded configuration. Only the log level changes at
// runtime; other changes are reported against the running configuration
// until a restart.
type reloader struct {
	current   *config.Config
	overrides func(*config.Config)
	level     *slog.LevelVar
	logger    *slog.Logger
}

func (r *reloader) apply(reloaded *config.Config) {
	if reloaded == nil {
		return
	}
	next := *reloaded
	if r.overrides != nil {
		r.overrides(&next)
	}
	if next.Log.Level != r.current.Log.Level {
		r.level.Set(parseLevel(next.Log.Level))
		r.logger.Info("log level changed", "from", r.current.Log.Level, "to", next.Log.Level)
	}
	var pending []string
	if next.Server != r.current.Server {
		pending = append(pending, "server")
	}
	if next.Log.Format != r.current.Log.Format {
		pending = append(pending, "log.format")
	}
	if next.Mongo != r.current.Mongo {
		pending = append(pending, "mongo")
	}
	if next.Metrics != r.current.Metrics {
		pending = append(pending, "metrics")
	}
	if next.Tracing != r.current.Tracing {
		pending = append(pending, "tracing")
	}
	if len(pending) > 0 {
		r.logger.Warn("configuration changes take effect after restart", "sections", strings.Join(pending, ","))
	}
	r.current.Log.Level = next.Log.Level
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
