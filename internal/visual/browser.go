// Package visual drives a real browser against the running dashboard and
// compares rendered output against reference images. The comparison itself
// is a pixel-diff oracle over PNG baselines stored in testdata.
package visual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser configuration for the visual checks.
type Config struct {
	DebuggerURL         string `json:"debugger_url"`
	Headless            bool   `json:"headless"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1280,
		ViewportHeight:      800,
		NavigationTimeoutMs: 30000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Harness owns the headless Chrome instance used by the checks.
type Harness struct {
	cfg Config

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

// NewHarness creates a harness; the browser launches on Start.
func NewHarness(cfg Config) *Harness {
	return &Harness{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one.
func (h *Harness) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		if _, err := h.browser.Version(); err == nil {
			return nil
		}
		_ = h.browser.Close()
		h.browser = nil
		h.controlURL = ""
	}

	controlURL := h.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(h.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	h.browser = browser
	h.controlURL = controlURL
	return nil
}

// Shutdown closes the browser.
func (h *Harness) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.browser != nil {
		err = h.browser.Close()
		h.browser = nil
	}
	h.controlURL = ""
	return err
}

// Open navigates a fresh incognito page to url with the configured viewport
// and waits for the load event. The caller closes the page.
func (h *Harness) Open(ctx context.Context, url string) (*rod.Page, error) {
	h.mu.Lock()
	browser := h.browser
	h.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not started")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	page = page.Context(ctx).Timeout(h.cfg.NavigationTimeout())
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             h.cfg.ViewportWidth,
		Height:            h.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("wait load: %w", err)
	}
	return page, nil
}

// CapturePage screenshots the page, optionally full-page.
func (h *Harness) CapturePage(ctx context.Context, page *rod.Page, fullPage bool) ([]byte, error) {
	data, err := page.Context(ctx).Screenshot(fullPage, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// CaptureElement screenshots the first element matching selector, waiting
// for it to be visible first.
func (h *Harness) CaptureElement(ctx context.Context, page *rod.Page, selector string) ([]byte, error) {
	el, err := page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot %q: %w", selector, err)
	}
	return data, nil
}
