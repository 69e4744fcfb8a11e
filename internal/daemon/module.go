package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/matheus3301/wppscrape/internal/api"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/config"
	"github.com/matheus3301/wppscrape/internal/history"
	"github.com/matheus3301/wppscrape/internal/lock"
	"github.com/matheus3301/wppscrape/internal/logging"
	"github.com/matheus3301/wppscrape/internal/login"
	"github.com/matheus3301/wppscrape/internal/operator"
	"github.com/matheus3301/wppscrape/internal/page"
	"github.com/matheus3301/wppscrape/internal/page/cdppage"
	"github.com/matheus3301/wppscrape/internal/page/rodpage"
	"github.com/matheus3301/wppscrape/internal/scheduler"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/matheus3301/wppscrape/internal/status"
	"github.com/matheus3301/wppscrape/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Engines accepted in [browser] engine.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

const (
	viewportWidth  = 1280
	viewportHeight = 900
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideArchive,
			provideDriver,
			provideLocators,
			provideFilterController,
			provideScanner,
			provideVisitor,
			provideRunner,
			provideScheduler,
			provideRecorder,
			provideBootstrapper,
			provideConsole,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), "wppscraped")
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore opens the run history. It depends on the lock so that two
// daemons never migrate the same file.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.HistoryDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("history store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideArchive(lc fx.Lifecycle, p Params, _ *lock.Lock, logger *zap.Logger) (*archive.Store, error) {
	cfg := p.Config.Archive
	if cfg.Bucket != "" {
		client, err := storage.NewClient(context.Background())
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		lc.Append(fx.StopHook(client.Close))
		logger.Info("archiving to bucket", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
		return archive.New(archive.NewGCSBackend(client, cfg.Bucket, cfg.Prefix, logger), logger), nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = session.ArchiveDir(p.SessionName)
	}
	logger.Info("archiving to directory", zap.String("dir", dir))
	return archive.New(archive.NewFileBackend(dir), logger), nil
}

func provideDriver(p Params, _ *lock.Lock, logger *zap.Logger) (page.Driver, error) {
	b := p.Config.Browser
	opts := page.LaunchOptions{
		Bin:         b.Bin,
		Headless:    b.Headless,
		DebuggerURL: b.DebuggerURL,
		UserDataDir: b.UserDataDir,
		Flags:       b.Flags,
		Width:       viewportWidth,
		Height:      viewportHeight,
	}
	if opts.UserDataDir == "" && opts.DebuggerURL == "" {
		opts.UserDataDir = session.ProfileDir(p.SessionName)
	}
	logger.Info("launching browser",
		zap.String("engine", b.Engine),
		zap.Bool("headless", opts.Headless),
		zap.String("profile", opts.UserDataDir),
	)
	// The browser outlives construction; it is closed in OnStop.
	ctx := context.Background()
	switch b.Engine {
	case EngineRod, "":
		d, err := rodpage.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case EngineChromedp:
		d, err := cdppage.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q (want %s or %s)", b.Engine, EngineRod, EngineChromedp)
	}
}

func provideLocators() scrape.Locators {
	return scrape.DefaultLocators()
}

func settleOptions(cfg *config.Config) page.SettleOptions {
	return page.SettleOptions{
		Interval: cfg.Settle.Interval.Duration,
		Quiet:    cfg.Settle.Quiet,
		Max:      cfg.Settle.Max.Duration,
	}
}

func provideFilterController(p Params, d page.Driver, loc scrape.Locators, logger *zap.Logger) *scrape.FilterController {
	return scrape.NewFilterController(d, loc, p.Config.Timeouts.Element.Duration, settleOptions(p.Config), logger)
}

func provideScanner(p Params, d page.Driver, loc scrape.Locators, logger *zap.Logger) (*scrape.Scanner, error) {
	unread, err := scrape.LookupUnreadStrategy(p.Config.Scan.UnreadStrategy)
	if err != nil {
		return nil, err
	}
	logger.Info("unread strategy selected", zap.String("version", unread.Version))
	return scrape.NewScanner(d, loc, unread, p.Config.Timeouts.List.Duration, logger), nil
}

func provideVisitor(p Params, d page.Driver, loc scrape.Locators, archiveStore *archive.Store, logger *zap.Logger) *scrape.Visitor {
	return scrape.NewVisitor(d, loc, archiveStore, scrape.VisitorOptions{
		ElementTimeout:  p.Config.Timeouts.Element.Duration,
		ChatLoadTimeout: p.Config.Timeouts.ChatLoad.Duration,
		Settle:          settleOptions(p.Config),
		Now:             time.Now,
	}, logger)
}

func provideRunner(filters *scrape.FilterController, scanner *scrape.Scanner, visitor *scrape.Visitor, b *bus.Bus, m *status.Machine, logger *zap.Logger) *scrape.Runner {
	return scrape.NewRunner(filters, scanner, visitor, b, m, logger)
}

func provideScheduler(p Params, runner *scrape.Runner, filters *scrape.FilterController, m *status.Machine, b *bus.Bus, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.New(runner, filters, p.Config.Schedule.Interval.Duration, m, b, logger)
}

func provideRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *history.Recorder {
	return history.NewRecorder(db, b, logger)
}

func provideBootstrapper(p Params, d page.Driver, loc scrape.Locators, m *status.Machine, b *bus.Bus, logger *zap.Logger) *login.Bootstrapper {
	return login.New(d, loc, login.Options{
		URL:          p.Config.Browser.URL,
		ReadyTimeout: p.Config.Timeouts.Ready.Duration,
		LoginTimeout: p.Config.Timeouts.Login.Duration,
	}, m, b, os.Stdout, logger)
}

func provideConsole(sched *scheduler.Scheduler, logger *zap.Logger) *operator.Console {
	return operator.New(os.Stdin, os.Stdout, sched, logger)
}

func provideService(p Params, m *status.Machine, sched *scheduler.Scheduler, filters *scrape.FilterController, db *store.DB) *api.Service {
	return api.NewService(p.SessionName, m, sched, filters, db)
}

func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *Server,
	lk *lock.Lock,
	db *store.DB,
	driver page.Driver,
	boot *login.Bootstrapper,
	sched *scheduler.Scheduler,
	recorder *history.Recorder,
	console *operator.Console,
	logger *zap.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Record runs before the first pass can start.
			recorder.Start(ctx)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			// Bootstrap in the background so the control socket answers
			// status queries while the operator scans the QR code.
			go func() {
				if err := boot.Run(ctx); err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Error("bootstrap failed, shutting down", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				sched.Start(ctx)
				if operator.IsInteractive(os.Stdin) {
					go func() {
						if err := console.Run(ctx); err != nil && ctx.Err() == nil {
							logger.Warn("operator console stopped", zap.Error(err))
						}
					}()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			sched.Stop()
			recorder.Stop()
			srv.Stop(stopCtx)
			if err := driver.Close(); err != nil {
				logger.Warn("error closing browser", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing history store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
