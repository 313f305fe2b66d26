package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
)

func TestBatchLimit(t *testing.T) {
	slow := &robotstxt.Group{CrawlDelay: 2 * time.Second}
	fast := &robotstxt.Group{CrawlDelay: 100 * time.Millisecond}

	assert.Equal(t, rate.Inf, batchLimit(0, nil))
	assert.Equal(t, rate.Every(time.Second), batchLimit(time.Second, nil))
	assert.Equal(t, rate.Every(2*time.Second), batchLimit(time.Second, slow))
	assert.Equal(t, rate.Every(time.Second), batchLimit(time.Second, fast))
}

func TestFetchResetsCrawlDelay(t *testing.T) {
	var mu sync.Mutex
	robots := "User-agent: *\nCrawl-delay: 3\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprint(w, robots)
	})
	mux.HandleFunc("/w/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ws := NewWikiSource(config.WikiConfig{
		BaseURL:           server.URL + "/w",
		UserAgent:         "TestBot/1.0",
		RequestTimeout:    5 * time.Second,
		MaxProfiles:       10,
		BatchSize:         1,
		EnableRobotsCheck: true,
		FailureThreshold:  5,
		BreakerTimeout:    time.Second,
	}, nil, nil)

	assert.Empty(t, ws.Fetch(context.Background()))
	assert.Equal(t, rate.Every(3*time.Second), ws.limiter.Limit())

	mu.Lock()
	robots = ""
	mu.Unlock()

	assert.Empty(t, ws.Fetch(context.Background()))
	assert.Equal(t, rate.Inf, ws.limiter.Limit())
}
