package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// probeResult is the cheap pre-flight evidence gathered before the browser
// starts: reachability, final status, and the robots.txt check used by the
// seo scoring.
type probeResult struct {
	StatusCode     int
	HTTPS          bool
	RobotsTxtFound bool
}

// prober runs a plain HTTP GET against the target ahead of the headless run
// so unreachable hosts fail fast without paying the browser cost.
type prober struct {
	userAgent string
	timeout   time.Duration
	base      *colly.Collector
}

func newProber(userAgent string, timeout time.Duration) *prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &prober{
		userAgent: userAgent,
		timeout:   timeout,
		base:      c,
	}
}

// probe fetches the target and its robots.txt. DNS and connect failures map
// to audit.ErrUnreachable.
func (p *prober) probe(ctx context.Context, target string) (probeResult, error) {
	res := probeResult{HTTPS: strings.HasPrefix(target, "https://")}

	status, err := p.visit(ctx, target)
	if err != nil {
		if unreachable(err) {
			return probeResult{}, fmt.Errorf("probe %s: %w", target, audit.ErrUnreachable)
		}
		return probeResult{}, fmt.Errorf("probe %s: %w", target, err)
	}
	res.StatusCode = status

	if robotsURL, ok := robotsURLFor(target); ok {
		if robotsStatus, robotsErr := p.visit(ctx, robotsURL); robotsErr == nil {
			res.RobotsTxtFound = robotsStatus == http.StatusOK
		}
	}
	return res, nil
}

func (p *prober) visit(ctx context.Context, target string) (int, error) {
	collector := p.base.Clone()
	if p.userAgent != "" {
		collector.UserAgent = p.userAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(p.timeout)

	var (
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			// A 4xx/5xx answer is still a reachable target.
			status = r.StatusCode
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return 0, fetchErr
		}
		if status != 0 {
			return status, nil
		}
		if err != nil {
			return 0, err
		}
		return http.StatusOK, nil
	}
}

func robotsURLFor(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host + "/robots.txt", true
}

// unreachable classifies network-level failures: DNS resolution, refused or
// timed out connections.
func unreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
