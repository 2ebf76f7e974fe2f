package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/m3rciful/taskbot/core/bootstrap"
	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
)

// DefaultConfigEnvVar names the variable consulted when no --config flag is given.
const DefaultConfigEnvVar = "CONFIG_PATH"

// Runnable is a fully wired application.
type Runnable interface {
	Run(ctx context.Context) error
}

// Options describe how to load configuration, bootstrap infrastructure and build the app.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath when set.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*config.Config, error)
	Bootstrap  func(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error)
	NewApp     func(ctx context.Context, cfg *config.Config, st storage.Storage) (Runnable, error)

	ShutdownLogger func() error
	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// ResolveConfigPath picks the config file from the explicit path, the env var or the default.
func (o Options) ResolveConfigPath() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	env := o.ConfigEnvVar
	if env == "" {
		env = DefaultConfigEnvVar
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via --config, %s or DefaultConfigPath", env)
}

func (o Options) load() (*config.Config, error) {
	path, err := o.ResolveConfigPath()
	if err != nil {
		return nil, err
	}
	load := o.LoadConfig
	if load == nil {
		load = config.Load
	}
	log.Printf("loading config: %s", path)
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

func (o Options) shutdownLogger() {
	shutdown := o.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	if err := shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}

func (o Options) notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	sigs := o.Signals
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return signal.NotifyContext(parent, sigs...)
}

// Run loads configuration, bootstraps storage and runs the app until a signal arrives.
func Run(parent context.Context, opts Options) error {
	if opts.NewApp == nil {
		return errors.New("cmd: NewApp is required")
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	ctx, cancel := opts.notifyContext(parent)
	defer cancel()

	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	res, err := boot(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer opts.shutdownLogger()

	application, err := opts.NewApp(ctx, cfg, res.Storage)
	if err != nil {
		_ = res.Storage.Close()
		return fmt.Errorf("cmd: app init failed: %w", err)
	}
	return application.Run(ctx)
}

// Migrate loads configuration and applies pending database migrations.
func Migrate(parent context.Context, opts Options) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("cmd: logger init failed: %w", err)
	}
	defer opts.shutdownLogger()

	ctx, cancel := opts.notifyContext(parent)
	defer cancel()
	return bootstrap.Migrate(ctx, cfg)
}
