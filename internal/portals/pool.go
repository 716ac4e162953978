package portals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserPool keeps a small set of Chrome processes for reuse across runs
type BrowserPool struct {
	config      *BrowserPoolConfig
	options     *HeadlessOptions
	instances   []*BrowserInstance
	mu          sync.RWMutex
	closed      bool
	cleanupDone chan struct{}
}

// ValidateChromeAvailable checks if Chrome/Chromium is available and working
func ValidateChromeAvailable() error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	testCtx, testCancel := context.WithTimeout(ctx, 10*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("Chrome/Chromium not available or not working: %w", err)
	}

	return nil
}

// NewBrowserPool creates a new browser pool with the given configuration
func NewBrowserPool(config *BrowserPoolConfig, options *HeadlessOptions) *BrowserPool {
	if config == nil {
		config = DefaultBrowserPoolConfig()
	}
	if options == nil {
		options = DefaultHeadlessOptions()
	}

	pool := &BrowserPool{
		config:      config,
		options:     options,
		instances:   make([]*BrowserInstance, 0, config.MaxBrowsers),
		cleanupDone: make(chan struct{}),
	}

	go pool.cleanupLoop()

	return pool
}

// Get retrieves an available browser instance from the pool
func (p *BrowserPool) Get(ctx context.Context) (*BrowserInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browser pool is closed")
	}

	for _, instance := range p.instances {
		if !instance.inUse {
			instance.inUse = true
			instance.lastUsed = time.Now()
			return instance, nil
		}
	}

	if len(p.instances) < p.config.MaxBrowsers {
		instance, err := p.createInstance(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create browser instance: %w", err)
		}

		instance.inUse = true
		instance.lastUsed = time.Now()
		p.instances = append(p.instances, instance)
		return instance, nil
	}

	return nil, fmt.Errorf("browser pool exhausted: %d instances in use", len(p.instances))
}

// Put returns a browser instance to the pool
func (p *BrowserPool) Put(instance *BrowserInstance) error {
	if instance == nil {
		return fmt.Errorf("cannot return nil instance to pool")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.cleanupInstance(instance)
		return nil
	}

	instance.inUse = false
	instance.lastUsed = time.Now()

	return nil
}

// Close shuts down all browser instances in the pool
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	for _, instance := range p.instances {
		p.cleanupInstance(instance)
	}
	p.instances = nil

	close(p.cleanupDone)

	return nil
}

// Stats returns current pool statistics
func (p *BrowserPool) Stats() BrowserPoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := BrowserPoolStats{Total: len(p.instances)}
	for _, instance := range p.instances {
		if instance.inUse {
			stats.Active++
		} else {
			stats.Idle++
		}
	}
	return stats
}

func (p *BrowserPool) createInstance(ctx context.Context) (*BrowserInstance, error) {
	// The browser outlives the request that started it
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.buildAllocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	startCtx, startCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer startCancel()

	stop := context.AfterFunc(ctx, startCancel)
	defer stop()

	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	return &BrowserInstance{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		lastUsed:    time.Now(),
	}, nil
}

func (p *BrowserPool) cleanupInstance(instance *BrowserInstance) {
	if instance.cancel != nil {
		instance.cancel()
	}
	if instance.allocCancel != nil {
		instance.allocCancel()
	}
}

// cleanupLoop periodically removes idle instances that have exceeded the idle timeout
func (p *BrowserPool) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanupIdleInstances()
		case <-p.cleanupDone:
			return
		}
	}
}

func (p *BrowserPool) cleanupIdleInstances() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	now := time.Now()
	idleCount := 0
	kept := make([]*BrowserInstance, 0, len(p.instances))

	for _, instance := range p.instances {
		if instance.inUse {
			kept = append(kept, instance)
			continue
		}
		idleCount++
		if now.Sub(instance.lastUsed) < p.config.IdleTimeout && idleCount <= p.config.MaxIdleBrowsers {
			kept = append(kept, instance)
		} else {
			p.cleanupInstance(instance)
		}
	}

	p.instances = kept
}

func (p *BrowserPool) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserAgent(p.options.UserAgent),
		chromedp.WindowSize(int(p.options.ViewportWidth), int(p.options.ViewportHeight)),
		chromedp.NoSandbox, // Often needed in containerized environments
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}

	if p.options.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if p.options.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	if p.options.DebugMode {
		opts = append(opts, chromedp.Flag("enable-logging", true))
		opts = append(opts, chromedp.Flag("log-level", "0"))
	}

	opts = append(opts,
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)

	return opts
}

// ExecuteWithBrowser runs fn in a fresh tab of a pooled browser. The tab
// context is bounded by the shorter of ctx and the session timeout.
func (p *BrowserPool) ExecuteWithBrowser(ctx context.Context, fn func(context.Context) error) error {
	instance, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer p.Put(instance)

	timeout := p.options.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	opCtx, cancel := context.WithTimeout(instance.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tabCtx, tabCancel := chromedp.NewContext(opCtx)
	defer tabCancel()

	return fn(tabCtx)
}
