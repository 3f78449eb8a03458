// Package browser runs scenarios in Chrome over the DevTools protocol.
//
// One Browser is launched per run. Every scenario gets its own Page in a
// fresh incognito context, so cookies, storage and request interception
// never leak between scenarios running in parallel.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures Chrome.
type Config struct {
	// Headless hides the browser window.
	Headless bool
	// Bin is the Chrome binary. Empty lets the launcher find or fetch one.
	Bin string
	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL string
	// NoSandbox is needed in most containers.
	NoSandbox bool
	// SlowMotion delays every input action, for watching a run.
	SlowMotion time.Duration
	// Origin is the application origin cookies are scoped to.
	Origin string
}

// DefaultConfig returns a headless, sandboxless configuration.
func DefaultConfig() Config {
	return Config{
		Headless:  true,
		NoSandbox: true,
	}
}

// Browser is a connected Chrome instance.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	logger   *slog.Logger
}

// Launch starts Chrome, or connects to cfg.ControlURL, and returns once the
// DevTools connection is up.
func Launch(ctx context.Context, cfg Config, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Browser{cfg: cfg, logger: logger}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			Set("disable-gpu")
		if cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch Chrome: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	r := rod.New().ControlURL(controlURL)
	if cfg.SlowMotion > 0 {
		r = r.SlowMotion(cfg.SlowMotion)
	}
	if err := r.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	b.rod = r

	logger.Debug("browser connected", "control_url", controlURL, "headless", cfg.Headless)
	return b, nil
}

// NewPage opens a blank page in a new incognito context.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	incognito, err := b.rod.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return newPage(page, incognito, b.cfg.Origin, b.logger), nil
}

// Close disconnects and, if this process launched Chrome, stops it.
// Always call this to avoid orphaned Chrome processes.
func (b *Browser) Close() error {
	var err error
	if b.rod != nil {
		err = b.rod.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.launcher = nil
	}
}
