// Package engine implements the page audit using a headless browser.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Config controls the behavior of the audit engine.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration
	// HostRPS and HostBurst bound how often one host is probed and rendered.
	HostRPS   float64
	HostBurst int
}

// Engine implements audit.Engine using chromedp and headless Chrome. Each
// run gets its own browser context off a shared exec allocator; canceling
// the run context tears the browser tab down, so a timed-out job never
// leaks a Chrome process.
type Engine struct {
	cfg         Config
	prober      *prober
	hosts       *hostLimiter
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates an Engine backed by chromedp.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Engine{
		cfg:         cfg,
		prober:      newProber(cfg.UserAgent, cfg.ProbeTimeout),
		hosts:       newHostLimiter(cfg.HostRPS, cfg.HostBurst),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, killing any remaining browsers.
func (e *Engine) Close() {
	e.allocCancel()
}

// Run audits one page: politeness wait, reachability probe, headless render,
// then scoring of the requested categories.
func (e *Engine) Run(ctx context.Context, req audit.Request) (*audit.Report, error) {
	if err := e.hosts.Wait(ctx, req.URL); err != nil {
		return nil, err
	}

	start := time.Now()
	probed, err := e.prober.probe(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	facts, err := e.render(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	facts.StatusCode = probed.StatusCode
	facts.HTTPS = probed.HTTPS
	facts.RobotsTxtFound = probed.RobotsTxtFound

	results := make([]audit.CategoryResult, 0, len(req.Categories))
	for _, c := range audit.NormalizeCategories(req.Categories) {
		results = append(results, Score(c, facts))
	}

	return &audit.Report{
		URL:        req.URL,
		FinalURL:   facts.FinalURL,
		Facts:      facts,
		Categories: results,
		Duration:   time.Since(start),
		FetchedAt:  start.UTC(),
	}, nil
}

// pageProbe mirrors the JSON shape returned by the collection script.
type pageProbe struct {
	Title            string `json:"title"`
	MetaDescription  string `json:"metaDescription"`
	MetaViewport     bool   `json:"metaViewport"`
	Lang             string `json:"lang"`
	H1Count          int    `json:"h1Count"`
	ImgCount         int    `json:"imgCount"`
	ImgMissingAlt    int    `json:"imgMissingAlt"`
	LinkCount        int    `json:"linkCount"`
	EmptyLinkCount   int    `json:"emptyLinkCount"`
	DOMContentLoaded int    `json:"domContentLoadedMs"`
	PageLoad         int    `json:"pageLoadMs"`
	FirstPaint       int    `json:"firstPaintMs"`
}

const collectScript = `(() => {
	const nav = performance.getEntriesByType('navigation')[0];
	const paint = performance.getEntriesByType('paint')
		.find((e) => e.name === 'first-contentful-paint');
	const links = Array.from(document.links);
	const imgs = Array.from(document.images);
	const meta = document.querySelector('meta[name="description"]');
	return {
		title: document.title || '',
		metaDescription: meta ? (meta.content || '') : '',
		metaViewport: !!document.querySelector('meta[name="viewport"]'),
		lang: document.documentElement.lang || '',
		h1Count: document.querySelectorAll('h1').length,
		imgCount: imgs.length,
		imgMissingAlt: imgs.filter((i) => !i.hasAttribute('alt')).length,
		linkCount: links.length,
		emptyLinkCount: links.filter(
			(a) => !(a.textContent || '').trim() && !a.querySelector('img')).length,
		domContentLoadedMs: nav ? Math.round(nav.domContentLoadedEventEnd) : 0,
		pageLoadMs: nav ? Math.round(nav.loadEventEnd) : 0,
		firstPaintMs: paint ? Math.round(paint.startTime) : 0,
	};
})()`

func (e *Engine) render(ctx context.Context, target string) (audit.PageFacts, error) {
	taskCtx, taskCancel := chromedp.NewContext(e.allocator, chromedp.WithNewBrowserContext())
	defer taskCancel()

	// Bound the browser work by the caller's deadline; cancellation on either
	// side kills the tab.
	taskCtx, cancel := context.WithTimeout(taskCtx, e.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	var consoleErrors atomic.Int64
	chromedp.ListenTarget(taskCtx, func(ev any) {
		switch v := ev.(type) {
		case *runtime.EventExceptionThrown:
			consoleErrors.Add(1)
		case *runtime.EventConsoleAPICalled:
			if v.Type == runtime.APITypeError {
				consoleErrors.Add(1)
			}
		}
	})

	var (
		probe    pageProbe
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		e.userAgentAction(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(collectScript, &probe),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return audit.PageFacts{}, fmt.Errorf("render %s: %w", target, ctx.Err())
		}
		return audit.PageFacts{}, fmt.Errorf("render %s: %w", target, err)
	}

	return audit.PageFacts{
		FinalURL:         finalURL,
		Title:            probe.Title,
		MetaDescription:  probe.MetaDescription,
		MetaViewport:     probe.MetaViewport,
		Lang:             probe.Lang,
		H1Count:          probe.H1Count,
		ImgCount:         probe.ImgCount,
		ImgMissingAlt:    probe.ImgMissingAlt,
		LinkCount:        probe.LinkCount,
		EmptyLinkCount:   probe.EmptyLinkCount,
		ConsoleErrors:    int(consoleErrors.Load()),
		DocumentBytes:    len(html),
		DOMContentLoaded: time.Duration(probe.DOMContentLoaded) * time.Millisecond,
		PageLoad:         time.Duration(probe.PageLoad) * time.Millisecond,
		FirstPaint:       time.Duration(probe.FirstPaint) * time.Millisecond,
	}, nil
}

func (e *Engine) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if e.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}
