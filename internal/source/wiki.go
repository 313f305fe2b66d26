package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/storage"
)

const maxPageBytes = 4 << 20

// WikiSource scrapes creator pages from the community wiki.
type WikiSource struct {
	config  config.WikiConfig
	client  *http.Client
	cache   storage.RecordStorage
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *logrus.Entry
}

// NewWikiSource creates a scraper. cache may be nil.
func NewWikiSource(cfg config.WikiConfig, cache storage.RecordStorage, logger *logrus.Entry) *WikiSource {
	logger = componentLogger(logger, "wiki_source")

	ws := &WikiSource{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache:   cache,
		limiter: rate.NewLimiter(batchLimit(cfg.BatchDelay, nil), 1),
		logger:  logger,
	}

	threshold := uint32(cfg.FailureThreshold)
	ws.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "wiki",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return ws
}

func (ws *WikiSource) Name() string {
	return KindWiki
}

// Fetch lists creators and scrapes their detail pages in rate-limited batches.
func (ws *WikiSource) Fetch(ctx context.Context) []profile.Record {
	robots := ws.robots(ctx)
	ws.limiter.SetLimit(batchLimit(ws.config.BatchDelay, robots))

	names, err := ws.listNames(ctx, robots)
	if err != nil {
		ws.logger.WithError(err).Error("Failed to fetch creator list")
		return ws.cachedAll()
	}
	if len(names) == 0 {
		ws.logger.Warn("Creator list is empty")
		return ws.cachedAll()
	}
	ws.logger.WithField("count", len(names)).Info("Fetched creator list")

	var records []profile.Record
	batchSize := ws.config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(names); start += batchSize {
		if err := ws.limiter.Wait(ctx); err != nil {
			ws.logger.WithError(err).Warn("Stopping detail fetch")
			return nil
		}
		end := start + batchSize
		if end > len(names) {
			end = len(names)
		}
		records = append(records, ws.fetchBatch(ctx, robots, names[start:end])...)
	}

	ws.logger.WithField("count", len(records)).Info("Fetched creator details")
	return records
}

func (ws *WikiSource) fetchBatch(ctx context.Context, robots *robotstxt.Group, names []string) []profile.Record {
	results := make([]*profile.Record, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = ws.fetchDetail(ctx, robots, name)
		}(i, name)
	}
	wg.Wait()

	out := make([]profile.Record, 0, len(names))
	for _, rec := range results {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// fetchDetail scrapes one page, falling back to the cached record on failure.
func (ws *WikiSource) fetchDetail(ctx context.Context, robots *robotstxt.Group, name string) *profile.Record {
	pageURL := ws.config.BaseURL + "/" + url.PathEscape(name)
	log := ws.logger.WithField("name", name)

	body, err := ws.get(ctx, robots, pageURL)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch detail page")
		return ws.cached(name)
	}

	rec, err := ParseDetailPage(strings.NewReader(string(body)), name)
	if err != nil {
		log.WithError(err).Warn("Failed to parse detail page")
		return ws.cached(name)
	}
	rec.WikiURL = pageURL

	if ws.cache != nil {
		if err := ws.cache.Save(*rec); err != nil {
			log.WithError(err).Warn("Failed to cache record")
		}
	}
	return rec
}

func (ws *WikiSource) cached(name string) *profile.Record {
	if ws.cache == nil {
		return nil
	}
	rec, err := ws.cache.Get(name)
	if err != nil {
		return nil
	}
	ws.logger.WithField("name", name).Info("Using cached record")
	return rec
}

// cachedAll serves the whole cache when the list page cannot be used.
func (ws *WikiSource) cachedAll() []profile.Record {
	if ws.cache == nil {
		return nil
	}
	records, err := ws.cache.List()
	if err != nil {
		ws.logger.WithError(err).Warn("Failed to read record cache")
		return nil
	}
	if len(records) > ws.config.MaxProfiles {
		records = records[:ws.config.MaxProfiles]
	}
	if len(records) > 0 {
		ws.logger.WithField("count", len(records)).Info("Serving cached records")
	}
	return records
}

func (ws *WikiSource) listNames(ctx context.Context, robots *robotstxt.Group) ([]string, error) {
	body, err := ws.get(ctx, robots, ws.config.BaseURL+"/")
	if err != nil {
		return nil, err
	}

	basePath := "/"
	if u, err := url.Parse(ws.config.BaseURL); err == nil {
		basePath = strings.TrimSuffix(u.Path, "/") + "/"
	}

	names, err := ParseListPage(strings.NewReader(string(body)), basePath)
	if err != nil {
		return nil, fmt.Errorf("parsing error: %w", err)
	}

	// the page index is optional and only adds names
	if body, err := ws.get(ctx, robots, ws.config.BaseURL+"/::cmd/list"); err == nil {
		if more, err := ParseListPage(strings.NewReader(string(body)), basePath); err == nil {
			names = mergeNames(names, more)
		}
	}

	if len(names) > ws.config.MaxProfiles {
		names = names[:ws.config.MaxProfiles]
	}
	return names, nil
}

// get downloads a page through the circuit breaker.
func (ws *WikiSource) get(ctx context.Context, robots *robotstxt.Group, pageURL string) ([]byte, error) {
	if robots != nil {
		if u, err := url.Parse(pageURL); err == nil && !robots.Test(u.EscapedPath()) {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", pageURL)
		}
	}

	return ws.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", ws.config.UserAgent)

		resp, err := ws.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("network error: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	})
}

// robots fetches robots.txt for the wiki host. A nil group means no restriction.
func (ws *WikiSource) robots(ctx context.Context) *robotstxt.Group {
	if !ws.config.EnableRobotsCheck {
		return nil
	}
	base, err := url.Parse(ws.config.BaseURL)
	if err != nil {
		return nil
	}
	robotsURL := base.Scheme + "://" + base.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", ws.config.UserAgent)

	resp, err := ws.client.Do(req)
	if err != nil {
		ws.logger.WithError(err).Warn("Failed to fetch robots.txt, proceeding without it")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		ws.logger.WithError(err).Warn("Failed to parse robots.txt, proceeding without it")
		return nil
	}
	return data.FindGroup(ws.config.UserAgent)
}

// batchLimit is the batch rate for one fetch: the configured delay, or the
// robots.txt crawl-delay when that is longer.
func batchLimit(delay time.Duration, robots *robotstxt.Group) rate.Limit {
	if robots != nil && robots.CrawlDelay > delay {
		delay = robots.CrawlDelay
	}
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
