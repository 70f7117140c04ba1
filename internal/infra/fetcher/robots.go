package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate caches parsed robots.txt files per host and answers whether a
// given URL may be fetched by our user agent. The engine consults it before
// calling Fetcher.Get; Fetcher itself has no robots.txt awareness.
type RobotsGate struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	byHost map[string]*robotstxt.RobotsData
}

// NewRobotsGate creates a gate that fetches robots.txt with client, identifying
// itself as userAgent when evaluating group matches.
func NewRobotsGate(client *http.Client, userAgent string) *RobotsGate {
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		byHost:    make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. A robots.txt that cannot be
// retrieved or parsed is treated as permissive (fail-open), matching the
// common crawler convention of not blocking a whole host on a transient
// robots.txt fetch error.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}

	data, err := g.dataFor(ctx, u)
	if err != nil {
		return true, nil
	}

	group := data.FindGroup(g.userAgent)
	return group.Test(u.Path), nil
}

func (g *RobotsGate) dataFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Scheme + "://" + u.Host

	g.mu.Lock()
	if data, ok := g.byHost[host]; ok {
		g.mu.Unlock()
		return data, nil
	}
	g.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.byHost[host] = data
	g.mu.Unlock()

	return data, nil
}
