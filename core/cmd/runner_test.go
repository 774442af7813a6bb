package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	coretelegram "github.com/m3rciful/satsbot/core/telegram"
)

type carrier struct{}

func (carrier) CoreConfig() *coreconfig.Config { return &coreconfig.Config{} }

type fakeApp struct{ opts coretelegram.RunOptions }

func (a fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestRunWrapsLifecycleHooks(t *testing.T) {
	t.Setenv("SATSBOT_TEST_CONFIG", "from-env.yaml")

	var calls []string
	var loaded string
	err := Run(Options{
		ConfigEnvVar:      "SATSBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return fakeApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context) error {
					calls = append(calls, "start")
					return nil
				},
				OnStop: func(context.Context) error {
					calls = append(calls, "stop")
					return nil
				},
			}}, nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx); err != nil {
				return err
			}
			return opts.OnStop(ctx)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if loaded != "from-env.yaml" {
		t.Fatalf("config path = %q", loaded)
	}
	if len(calls) != 2 || calls[0] != "start" || calls[1] != "stop" {
		t.Fatalf("hooks = %v", calls)
	}
}

func TestRunStopsOnFailedStartHook(t *testing.T) {
	boom := errors.New("metrics listen failed")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return fakeApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context) error { return boom },
			}}, nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			return opts.OnStart(ctx)
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	if err := Run(Options{}); err == nil {
		t.Fatal("missing loaders should fail")
	}
}
