package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/taskbot/core/bootstrap"
	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/storage/memstore"
)

type fakeApp struct {
	ran bool
	err error
}

func (a *fakeApp) Run(context.Context) error {
	a.ran = true
	return a.err
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TASKBOT_TEST_CONFIG", "/from/env.yaml")
	o := Options{ConfigEnvVar: "TASKBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"}
	if p, _ := o.ResolveConfigPath(); p != "/from/env.yaml" {
		t.Fatalf("env path = %q", p)
	}
	o.ConfigPath = "/explicit.yaml"
	if p, _ := o.ResolveConfigPath(); p != "/explicit.yaml" {
		t.Fatalf("explicit path = %q", p)
	}
	t.Setenv("TASKBOT_TEST_CONFIG", "")
	if p, _ := (Options{ConfigEnvVar: "TASKBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"}).ResolveConfigPath(); p != "config.yaml" {
		t.Fatalf("default path = %q", p)
	}
	if _, err := (Options{ConfigEnvVar: "TASKBOT_TEST_CONFIG"}).ResolveConfigPath(); err == nil {
		t.Fatal("expected missing path error")
	}
}

func testOptions(app *fakeApp) (Options, *bool) {
	shutdown := false
	return Options{
		ConfigPath: "ignored.yaml",
		LoadConfig: func(string) (*config.Config, error) { return &config.Config{}, nil },
		Bootstrap: func(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
			return &bootstrap.Result{Storage: memstore.New()}, nil
		},
		NewApp: func(context.Context, *config.Config, storage.Storage) (Runnable, error) {
			return app, nil
		},
		ShutdownLogger: func() error { shutdown = true; return nil },
	}, &shutdown
}

func TestRunStartsApp(t *testing.T) {
	app := &fakeApp{}
	opts, shutdown := testOptions(app)
	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !app.ran || !*shutdown {
		t.Fatalf("ran=%v shutdown=%v", app.ran, *shutdown)
	}
}

func TestRunPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")

	app := &fakeApp{err: boom}
	opts, _ := testOptions(app)
	if err := Run(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("app error = %v", err)
	}

	opts, _ = testOptions(&fakeApp{})
	opts.LoadConfig = func(string) (*config.Config, error) { return nil, boom }
	if err := Run(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("load error = %v", err)
	}

	opts, _ = testOptions(&fakeApp{})
	opts.NewApp = nil
	if err := Run(context.Background(), opts); err == nil {
		t.Fatal("expected NewApp error")
	}
}
