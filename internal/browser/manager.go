// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/internal/config"
)

// Manager owns the headless browser process. All audit sessions (tabs) are
// derived from its allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it responds.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser-manager"),
		cfg:    cfg,
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.allocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Confirm the browser starts before handing out sessions.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	defer cancelTest()
	tabCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched and responsive.")
	return m, nil
}

// NewSession opens a fresh tab with network harvesting already running.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	sess, err := newSession(m.allocatorCtx, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-sess.tabCtx.Done()
	}()
	return sess, nil
}

// Shutdown closes the browser process after all sessions finish or the
// context expires.
func (m *Manager) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline reached with sessions still open.")
	}

	m.allocatorCancel()
	m.logger.Info("Browser manager shut down.")
}

// allocatorOptions assembles the launch flags for a configurable headless
// instance.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.Headless),
		chromedp.Flag("mute-audio", true),
	)

	if m.cfg.Browser.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.Browser.ChromePath))
	}

	// Custom arguments from config.yaml, "--flag" or "--flag=value".
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containerized Linux needs these to run at all.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	return opts
}
