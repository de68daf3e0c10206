package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per scheme+host for the
// duration of one crawl run.
//
// Design decision: Errors fetching or parsing robots.txt fail open.
// An unreachable robots.txt must not make a whole site uncrawlable;
// the politeness delay still bounds our request rate either way.
// robotstxt.FromResponse already handles the status-code rules: 4xx
// allows everything, 5xx disallows everything.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu   sync.Mutex
	data map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		data:      make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether robots.txt permits fetching u.
func (rc *robotsCache) allowed(ctx context.Context, u *url.URL) bool {
	data := rc.lookup(ctx, u)
	if data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, rc.userAgent)
}

// lookup returns the cached robots data for u's host, fetching it on
// first use. A nil return means "no usable robots.txt": fail open.
func (rc *robotsCache) lookup(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if data, ok := rc.data[key]; ok {
		return data
	}

	data := rc.fetch(ctx, key+"/robots.txt")
	rc.data[key] = data
	return data
}

func (rc *robotsCache) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
