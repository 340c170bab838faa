package mailpdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Converter renders HTML documents to PDF.
//
// A Converter manages a headless browser instance that is reused across
// conversions; every conversion gets its own tab. It is safe for
// concurrent use.
//
// Call [Converter.Close] when the Converter is no longer needed to release
// browser resources.
type Converter struct {
	cfg           converterConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewConverter creates a Converter with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Converter.Close] when finished.
func NewConverter(opts ...Option) (*Converter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	execPath, err := cfg.execPath()
	if err != nil {
		return nil, err
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("mailpdf: starting browser: %w", err)
	}

	return &Converter{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Converter, including the
// browser process. Close is idempotent.
func (c *Converter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

// ConvertHTML renders an HTML string to a PDF document.
// If pg is nil, [DefaultPageConfig] values are used.
//
// The document is loaded into a blank tab rather than from disk, so
// relative and file:// references in html do not resolve.
func (c *Converter) ConvertHTML(ctx context.Context, html string, pg *PageConfig) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()

	// Tear the tab down when the caller gives up, e.g. a client that
	// disconnected mid-render.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var buf []byte
	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if c.cfg.scriptsOff {
		actions = append(actions, emulation.SetScriptExecutionDisabled(true))
	}
	actions = append(actions,
		setDocument(html),
		waitLoaded(loadPollInterval),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = pg.printParams().Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	res := &Result{data: buf}
	if err := res.validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// setDocument replaces the content of the tab's main frame.
func setDocument(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// loadedCheck is true once the document has finished loading and every
// image and web font is decoded. Broken images count as complete.
const loadedCheck = `document.readyState === "complete" &&
	Array.from(document.images).every(img => img.complete) &&
	(!document.fonts || document.fonts.status === "loaded")`

const loadPollInterval = 25 * time.Millisecond

// waitLoaded blocks until loadedCheck holds. Printing earlier can drop
// inline images and fonts that are still decoding.
func waitLoaded(interval time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			var done bool
			if err := chromedp.Evaluate(loadedCheck, &done).Do(ctx); err != nil {
				return fmt.Errorf("waiting for page load: %w", err)
			}
			if done {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
			}
		}
	})
}

func (c *Converter) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// ConvertHTML renders HTML to PDF using a temporary [Converter].
// This is convenient for one-off conversions. For repeated use, create a
// [Converter] with [NewConverter] to reuse the browser instance.
func ConvertHTML(ctx context.Context, html string, pg *PageConfig, opts ...Option) (*Result, error) {
	conv, err := NewConverter(opts...)
	if err != nil {
		return nil, err
	}
	defer conv.Close()
	return conv.ConvertHTML(ctx, html, pg)
}
