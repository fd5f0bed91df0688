package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/zapcrm/internal/config"
	"go.uber.org/fx"
)

func TestDaemonLifecycle(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")
	err := config.Save(cfgPath, &config.Config{
		Listen: "127.0.0.1:0",
		Tenants: []config.Tenant{
			{ID: "acme", Name: "Acme Imoveis"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	app := fx.New(
		Module(Params{ConfigPath: cfgPath, DataDir: base}),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestDaemonSecondInstanceRejected(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")
	err := config.Save(cfgPath, &config.Config{
		Listen: "127.0.0.1:0",
		Tenants: []config.Tenant{
			{ID: "acme", Name: "Acme"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	first := fx.New(Module(Params{ConfigPath: cfgPath, DataDir: base}), fx.NopLogger)
	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := first.Start(startCtx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = first.Stop(stopCtx)
	}()

	second := fx.New(Module(Params{ConfigPath: cfgPath, DataDir: base}), fx.NopLogger)
	ctx, cancel2 := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel2()
	if err := second.Start(ctx); err == nil {
		_ = second.Stop(ctx)
		t.Fatal("second instance should fail to acquire the lock")
	}
}
