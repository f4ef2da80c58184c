// Cunzhi-mcp serves the themed interaction, memory and search tools to an
// MCP client over stdio.
//
// Configuration is read from ~/.config/cunzhi/config.yaml, or the file named
// by -config or $CUNZHI_CONFIG. The theme is resolved once at startup.
// Enablement changes written by `cunzhi tools ...` take effect on the next
// request and are announced with notifications/tools/list_changed.
//
// Usage:
//
//	# Start the stdio server
//	cunzhi-mcp
//
//	# Use another configuration file
//	cunzhi-mcp -config ./config.yaml
//
//	# Show version information
//	cunzhi-mcp version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
	"github.com/fyrsmithlabs/cunzhi/internal/config"
	httpserver "github.com/fyrsmithlabs/cunzhi/internal/http"
	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
	"github.com/fyrsmithlabs/cunzhi/internal/logging"
	"github.com/fyrsmithlabs/cunzhi/internal/mcp"
	"github.com/fyrsmithlabs/cunzhi/internal/mcp/handlers"
	"github.com/fyrsmithlabs/cunzhi/internal/memory"
	"github.com/fyrsmithlabs/cunzhi/internal/search"
	"github.com/fyrsmithlabs/cunzhi/internal/telemetry"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default ~/.config/cunzhi/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  cunzhi-mcp [-config file]   Start the MCP server on stdio\n")
			fmt.Fprintf(os.Stderr, "  cunzhi-mcp version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout is the MCP transport; diagnostics go to stderr only.
	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cunzhi-mcp: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("cunzhi-mcp by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// app holds the wired collaborators of one server process.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	logger  *logging.Logger
	store   *capability.Store
	server  *mcp.Server
	watcher *config.Watcher
	path    string
}

// run wires the collaborators and serves until the client disconnects or
// ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return a.serve(ctx)
}

// newApp builds every collaborator without serving. An unreadable or
// invalid configuration document never prevents startup: the server comes
// up on defaults and the store keeps retrying the document on every read.
func newApp(ctx context.Context, configPath string) (*app, error) {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, loadErr := config.LoadOrDefault(configPath)

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a := &app{cfg: cfg, tel: tel, path: configPath}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		a.close()
		return nil, err
	}
	a.logger, err = logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if loadErr != nil {
		a.logger.Warn(ctx, "configuration unusable, starting with defaults",
			zap.String("config", configPath),
			zap.Error(loadErr))
	}
	if degraded, problems := tel.Degraded(); degraded {
		a.logger.Warn(ctx, "telemetry degraded", zap.Error(problems))
	}

	zl := a.logger.Underlying()
	th := theme.NewResolver(theme.WithLogger(zl.Named("theme"))).Resolve()
	a.store = capability.NewStore(th, config.NewFileStore(configPath), zl.Named("capability"))

	h, err := newHandlers(cfg, th, zl)
	if err != nil {
		a.close()
		return nil, err
	}

	dispatcher, err := mcp.NewDispatcher(th, a.store, h,
		mcp.WithVersion(version),
		mcp.WithLogger(a.logger.Named("dispatcher")),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	if a.server, err = mcp.NewServer(dispatcher, a.logger); err != nil {
		a.close()
		return nil, err
	}

	a.watcher, err = config.NewWatcher(configPath, config.WithWatchLogger(zl.Named("config")))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to watch configuration: %w", err)
	}
	return a, nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watcher.OnChange(func() { a.server.Sync(ctx) })

	a.logger.Info(ctx, "starting cunzhi-mcp",
		zap.String("version", version),
		zap.String("config", a.path),
		zap.String("theme", a.store.Theme().Name),
		zap.Strings("advertised", a.server.Advertised()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the session ends when the client closes stdin
		defer cancel()
		return a.server.Run(gctx)
	})
	g.Go(func() error {
		return a.watcher.Run(gctx)
	})

	if a.cfg.HTTP.Enabled {
		ops, err := httpserver.NewServer(a.store, a.logger.Underlying().Named("http"), &httpserver.Config{
			Host:     a.cfg.HTTP.Host,
			Port:     a.cfg.HTTP.Port,
			OnChange: func() { a.server.Sync(gctx) },
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to create http server: %w", err)
		}
		g.Go(ops.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ops.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info(context.Background(), "cunzhi-mcp stopped")
	return nil
}

// close flushes telemetry and logs. It is safe on a partially built app.
func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.tel.Shutdown(shutdownCtx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newHandlers(cfg *config.Config, th *theme.Theme, logger *zap.Logger) (mcp.Handlers, error) {
	renderer, err := interaction.NewExecRenderer(cfg.Interaction.Command,
		interaction.WithTimeout(cfg.Interaction.Timeout.Duration()),
		interaction.WithLogger(logger.Named("interaction")),
	)
	if err != nil {
		// resolved on PATH when the first popup is shown
		logger.Warn("interaction front-end not found", zap.Error(err))
		renderer, err = interaction.NewExecRenderer([]string{interaction.PopupBinary, "popup"},
			interaction.WithTimeout(cfg.Interaction.Timeout.Duration()),
			interaction.WithLogger(logger.Named("interaction")),
		)
		if err != nil {
			return mcp.Handlers{}, err
		}
	}

	opener, err := memory.NewSQLiteOpener(cfg.Memory.Dir, logger.Named("memory"))
	if err != nil {
		return mcp.Handlers{}, fmt.Errorf("invalid memory configuration: %w", err)
	}

	index, err := search.NewIndex(search.OptionsFromConfig(cfg.Search), nil, logger.Named("search"))
	if err != nil {
		return mcp.Handlers{}, fmt.Errorf("failed to open search index: %w", err)
	}

	return mcp.Handlers{
		Interaction: handlers.NewInteractionHandler(renderer, th, logger.Named("interaction")),
		Memory:      handlers.NewMemoryHandler(opener, th, logger.Named("memory")),
		Search:      handlers.NewSearchHandler(index, th, logger.Named("search")),
	}, nil
}
