package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// PoolOptions holds configuration for the browser pool.
type PoolOptions struct {
	Size           int
	Headless       bool
	UserAgent      string
	StartupTimeout time.Duration
}

// Browser is one long-lived headless Chrome instance owned by the pool.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	index       int
}

// Pool is a process-wide, bounded set of headless browsers. Acquire waits
// FIFO; Release returns the browser without closing it; browsers live until
// Cleanup.
type Pool struct {
	free   chan *Browser
	all    []*Browser
	opts   PoolOptions
	logger arbor.ILogger
}

// NewPool launches opts.Size browsers and verifies each one is responsive
// before handing it out.
func NewPool(opts PoolOptions, logger arbor.ILogger) (*Pool, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0, got %d", opts.Size)
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 30 * time.Second
	}
	if opts.Size > 20 {
		logger.Warn().
			Int("size", opts.Size).
			Msg("Large browser pool size - this may consume significant memory")
	}

	p := &Pool{
		free:   make(chan *Browser, opts.Size),
		opts:   opts,
		logger: logger,
	}

	for i := 0; i < opts.Size; i++ {
		b, err := p.launch(i)
		if err != nil {
			p.Cleanup()
			return nil, fmt.Errorf("launch browser %d: %w", i, err)
		}
		p.all = append(p.all, b)
		p.free <- b
	}

	logger.Info().
		Int("browsers", len(p.all)).
		Bool("headless", opts.Headless).
		Msg("Browser pool initialized")
	return p, nil
}

func (p *Pool) launch(index int) (*Browser, error) {
	start := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if p.opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(p.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, p.opts.StartupTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	p.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(start)).
		Msg("Browser instance created")

	return &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		index:       index,
	}, nil
}

// Acquire returns a running browser, waiting FIFO until one is free or the
// context is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*Browser, error) {
	select {
	case b := <-p.free:
		p.logger.Debug().Int("browser_index", b.index).Msg("Browser acquired from pool")
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool. The browser stays running.
func (p *Pool) Release(b *Browser) {
	if b == nil {
		return
	}
	select {
	case p.free <- b:
		p.logger.Debug().Int("browser_index", b.index).Msg("Browser released to pool")
	default:
		// Double release; drop rather than block.
		p.logger.Warn().Int("browser_index", b.index).Msg("Browser released twice")
	}
}

// Size returns the number of browsers owned by the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// Cleanup closes every browser and drains the pool.
func (p *Pool) Cleanup() {
	for _, b := range p.all {
		if b.cancel != nil {
			b.cancel()
		}
		if b.allocCancel != nil {
			b.allocCancel()
		}
	}
	for {
		select {
		case <-p.free:
		default:
			p.all = nil
			p.logger.Info().Msg("Browser pool cleaned up")
			return
		}
	}
}
