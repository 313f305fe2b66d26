package source_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/source"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/storage"
)

const listPage = `<html><body>
<ul>
<li><a href="/nijisanji/FrontPage">トップページ</a></li>
<li><a href="%s">月ノ美兎</a></li>
<li><a href="%s">叶</a></li>
<li><a href="/nijisanji/NIJISANJI%%20EN">NIJISANJI EN</a></li>
<li><a href="/other/page">樋口楓</a></li>
<li><a href="%s">テスト</a></li>
<li><a href="%s">月ノ美兎</a></li>
</ul>
</body></html>`

const mitoPage = `<html><head><title>月ノ美兎</title><script>var x = "歌枠";</script></head><body>
<table>
<tr><th>初配信日</th><td>2018年2月8日</td></tr>
<tr><th>性別</th><td>女性</td></tr>
</table>
<p>学級委員長。雑談と歌枠が中心。</p>
<div>ゲーム実況ではFPSやホラーもプレイ。明るい性格。登録者数: 1,000,000人</div>
</body></html>`

const kanaePage = `<html><body><p>ゲーム配信が多い。</p></body></html>`

func creatorHref(name string) string {
	return "/nijisanji/" + url.PathEscape(name)
}

type wikiFixture struct {
	server    *httptest.Server
	robots    string
	indexHits atomic.Int32
}

func newWikiFixture(t *testing.T, robots string) *wikiFixture {
	f := &wikiFixture{robots: robots}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.robots)
	})
	mux.HandleFunc("/nijisanji/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nijisanji/":
			fmt.Fprintf(w, listPage,
				creatorHref("月ノ美兎"), creatorHref("叶"), creatorHref("テスト"), creatorHref("月ノ美兎"))
		case "/nijisanji/月ノ美兎":
			fmt.Fprint(w, mitoPage)
		case "/nijisanji/叶":
			fmt.Fprint(w, kanaePage)
		default:
			if strings.Contains(r.URL.Path, "::cmd") {
				f.indexHits.Add(1)
			}
			http.NotFound(w, r)
		}
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wikiFixture) config() config.WikiConfig {
	return config.WikiConfig{
		BaseURL:           f.server.URL + "/nijisanji",
		UserAgent:         "TestBot/1.0",
		RequestTimeout:    5 * time.Second,
		MaxProfiles:       50,
		BatchSize:         2,
		EnableRobotsCheck: true,
		FailureThreshold:  5,
		BreakerTimeout:    time.Second,
	}
}

func TestWikiSourceFetch(t *testing.T) {
	f := newWikiFixture(t, "User-agent: *\nDisallow: /nijisanji/::cmd\n")

	cache, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Save(profile.Record{Name: "テスト", Gender: "男性"}))

	src := source.NewWikiSource(f.config(), cache, nil)
	records := src.Fetch(context.Background())

	require.Len(t, records, 3)
	assert.Equal(t, int32(0), f.indexHits.Load())

	mito := records[0]
	assert.Equal(t, "月ノ美兎", mito.Name)
	assert.Equal(t, "2018-02-08", mito.DebutDate)
	assert.Equal(t, "女性", mito.Gender)
	assert.Equal(t, "学級委員長。雑談と歌枠が中心。", mito.Description)
	assert.Equal(t, []string{"雑談", "ゲーム", "歌"}, mito.StreamingGenres)
	assert.Equal(t, []string{"FPS", "ホラー"}, mito.GameGenres)
	assert.Equal(t, []string{"元気"}, mito.PersonalityTraits)
	assert.Equal(t, 1000000, mito.SubscriberCount)
	assert.Equal(t, f.server.URL+creatorHref("月ノ美兎"), mito.WikiURL)

	kanae := records[1]
	assert.Equal(t, "叶", kanae.Name)
	assert.Empty(t, kanae.Gender)
	assert.Equal(t, []string{"ゲーム"}, kanae.StreamingGenres)

	// detail page is missing, so the cached copy is used
	assert.Equal(t, "テスト", records[2].Name)
	assert.Equal(t, "男性", records[2].Gender)

	cached, err := cache.Get("月ノ美兎")
	require.NoError(t, err)
	assert.Equal(t, "2018-02-08", cached.DebutDate)
}

func TestWikiSourceWithoutCacheDropsFailedPages(t *testing.T) {
	f := newWikiFixture(t, "")

	records := source.NewWikiSource(f.config(), nil, nil).Fetch(context.Background())

	require.Len(t, records, 2)
	assert.Equal(t, "月ノ美兎", records[0].Name)
	assert.Equal(t, "叶", records[1].Name)
}

func TestWikiSourceMaxProfiles(t *testing.T) {
	f := newWikiFixture(t, "")
	cfg := f.config()
	cfg.MaxProfiles = 1

	records := source.NewWikiSource(cfg, nil, nil).Fetch(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, "月ノ美兎", records[0].Name)
}

func TestWikiSourceRobotsDisallowed(t *testing.T) {
	f := newWikiFixture(t, "User-agent: *\nDisallow: /\n")

	assert.Empty(t, source.NewWikiSource(f.config(), nil, nil).Fetch(context.Background()))
}

func TestWikiSourceUnreachable(t *testing.T) {
	f := newWikiFixture(t, "")
	cfg := f.config()
	f.server.Close()

	assert.Empty(t, source.NewWikiSource(cfg, nil, nil).Fetch(context.Background()))
}

func TestWikiSourceUnreachableServesCache(t *testing.T) {
	f := newWikiFixture(t, "")
	cfg := f.config()
	f.server.Close()

	cache, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Save(profile.Record{Name: "叶"}))
	require.NoError(t, cache.Save(profile.Record{Name: "葛葉"}))

	records := source.NewWikiSource(cfg, cache, nil).Fetch(context.Background())
	require.Len(t, records, 2)
}

func TestParseListPageFilters(t *testing.T) {
	page := `<a href="/w/叶">叶</a><a href="/w/Help">Help</a><a href="/w/x">メニュー</a>` +
		`<a href="/w/::cmd/list">一覧</a><a href="/w/y">VOLTACTION</a><a href="/w/z">葛葉</a>`

	names, err := source.ParseListPage(strings.NewReader(page), "/w/")
	require.NoError(t, err)
	assert.Equal(t, []string{"叶", "葛葉"}, names)
}

func TestInferGender(t *testing.T) {
	assert.Equal(t, "女性", source.InferGender("星川サラ"))
	assert.Equal(t, "女性", source.InferGender("桜凛月"))
	assert.Equal(t, "", source.InferGender("叶"))
}

func TestParseDetailPageEmpty(t *testing.T) {
	_, err := source.ParseDetailPage(strings.NewReader("<html><body></body></html>"), "叶")
	assert.Error(t, err)
}
