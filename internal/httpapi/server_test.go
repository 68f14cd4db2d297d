package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
)

type settingUpsert struct {
	key   string
	value string
}

type fakeStore struct {
	rankings         []db.MemberRanking
	rankingDimension string
	members          map[string]*db.MemberDetail
	articles         []db.ArticleListItem
	articleByUUID    map[string]*db.ArticleDetail
	settings         map[string]*db.SettingRecord
	cacheVersion     int64
	cacheErr         error
	bumpCalls        int
	getSettingCalls  int
	upserts          []settingUpsert
	lastListOpts     db.ArticleListOptions
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:       map[string]*db.MemberDetail{},
		articleByUUID: map[string]*db.ArticleDetail{},
		settings:      map[string]*db.SettingRecord{},
	}
}

func (f *fakeStore) ListMemberRankings(_ context.Context, dimension string, _ int) ([]db.MemberRanking, error) {
	f.rankingDimension = dimension
	return f.rankings, nil
}

func (f *fakeStore) GetMemberDetail(_ context.Context, memberCode string, _ int) (*db.MemberDetail, error) {
	detail, exists := f.members[memberCode]
	if !exists {
		return nil, db.ErrNoRows
	}
	return detail, nil
}

func (f *fakeStore) ListArticles(_ context.Context, opts db.ArticleListOptions) ([]db.ArticleListItem, error) {
	f.lastListOpts = opts
	return f.articles, nil
}

func (f *fakeStore) GetArticleByUUID(_ context.Context, articleUUID string) (*db.ArticleDetail, error) {
	detail, exists := f.articleByUUID[articleUUID]
	if !exists {
		return nil, db.ErrNoRows
	}
	return detail, nil
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (*db.SettingRecord, error) {
	f.getSettingCalls++
	record, exists := f.settings[key]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (f *fakeStore) ListSettings(_ context.Context) ([]db.SettingRecord, error) {
	items := make([]db.SettingRecord, 0, len(f.settings))
	for _, record := range f.settings {
		items = append(items, *record)
	}
	return items, nil
}

func (f *fakeStore) UpsertSetting(_ context.Context, key, value string, now time.Time) error {
	f.upserts = append(f.upserts, settingUpsert{key: key, value: value})
	f.settings[key] = &db.SettingRecord{Key: key, Value: value, UpdatedAt: now}
	return nil
}

func (f *fakeStore) BumpCacheVersion(_ context.Context, _ time.Time) (int64, error) {
	f.bumpCalls++
	f.cacheVersion++
	return f.cacheVersion, nil
}

func (f *fakeStore) CacheVersion(_ context.Context) (int64, error) {
	if f.cacheErr != nil {
		return 0, f.cacheErr
	}
	return f.cacheVersion, nil
}

func newTestServer(store *fakeStore) *Server {
	return &Server{
		store:  store,
		logger: zerolog.Nop(),
	}
}

func newGetContext(path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	c, rec := newGetContext("/healthz")

	if err := server.handleHealth(c); err != nil {
		t.Fatalf("handleHealth returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pulse"`) {
		t.Fatalf("health body missing service name: %s", rec.Body.String())
	}
}

func TestHandleRankings_DefaultsToOverall(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.rankings = []db.MemberRanking{{MemberCode: "IE-HOH-1", FullName: "Micheál Martin", Overall: 72.5}}
	server := newTestServer(store)
	c, rec := newGetContext("/api/v1/rankings")

	if err := server.handleRankings(c); err != nil {
		t.Fatalf("handleRankings returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.rankingDimension != "overall" {
		t.Fatalf("dimension = %q, want overall", store.rankingDimension)
	}
}

func TestHandleRankings_RejectsUnknownDimension(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	c, rec := newGetContext("/api/v1/rankings?dimension=charisma")

	if err := server.handleRankings(c); err != nil {
		t.Fatalf("handleRankings returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRankings_RejectsOutOfRangeLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	c, rec := newGetContext("/api/v1/rankings?limit=9000")

	if err := server.handleRankings(c); err != nil {
		t.Fatalf("handleRankings returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleMemberDetail_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())
	c, rec := newGetContext("/api/v1/members/IE-HOH-404")
	c.SetParamNames("code")
	c.SetParamValues("IE-HOH-404")

	if err := server.handleMemberDetail(c); err != nil {
		t.Fatalf("handleMemberDetail returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleArticles_ForcesVisibleOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	server := newTestServer(store)
	c, rec := newGetContext("/api/v1/articles?source=rte-news")

	if err := server.handleArticles(c); err != nil {
		t.Fatalf("handleArticles returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !store.lastListOpts.VisibleOnly {
		t.Fatal("articles listing must be visible-only")
	}
	if store.lastListOpts.Source != "rte-news" {
		t.Fatalf("source filter = %q", store.lastListOpts.Source)
	}
	if store.lastListOpts.Limit != defaultListLimit {
		t.Fatalf("limit = %d, want default %d", store.lastListOpts.Limit, defaultListLimit)
	}
}

func TestHandleArticleDetail_HidesInvisibleArticles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articleByUUID["11111111-1111-1111-1111-111111111111"] = &db.ArticleDetail{
		ArticleListItem: db.ArticleListItem{
			ArticleUUID: "11111111-1111-1111-1111-111111111111",
			Title:       "Duplicate coverage",
			Visible:     false,
		},
	}
	server := newTestServer(store)
	c, rec := newGetContext("/api/v1/articles/11111111-1111-1111-1111-111111111111")
	c.SetParamNames("uuid")
	c.SetParamValues("11111111-1111-1111-1111-111111111111")

	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handleArticleDetail returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for invisible article", rec.Code)
	}
}

func TestCacheValidator_SetsETagAndHonorsIfNoneMatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.cacheVersion = 7
	server := newTestServer(store)

	handler := server.cacheValidator()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, rec := newGetContext("/api/v1/rankings")
	if err := handler(c); err != nil {
		t.Fatalf("cacheValidator returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("ETag"); got != `"v7"` {
		t.Fatalf("ETag = %q, want %q", got, `"v7"`)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rankings", nil)
	req.Header.Set("If-None-Match", `W/"v7"`)
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("cacheValidator returned error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304 on matching tag", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rankings", nil)
	req.Header.Set("If-None-Match", `"v6"`)
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("cacheValidator returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on stale tag", rec.Code)
	}
}

func TestCacheValidator_LookupFailureDegrades(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.cacheErr = context.DeadlineExceeded
	server := newTestServer(store)

	handler := server.cacheValidator()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, rec := newGetContext("/api/v1/rankings")
	if err := handler(c); err != nil {
		t.Fatalf("cacheValidator returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("ETag") != "" {
		t.Fatalf("ETag should be absent when the version lookup fails")
	}
}

func TestParsePositiveInt(t *testing.T) {
	t.Parallel()

	if got, err := parsePositiveInt("", 25, 1, 200); err != nil || got != 25 {
		t.Fatalf("empty input: got %d, %v", got, err)
	}
	if got, err := parsePositiveInt(" 50 ", 25, 1, 200); err != nil || got != 50 {
		t.Fatalf("trimmed input: got %d, %v", got, err)
	}
	if _, err := parsePositiveInt("banana", 25, 1, 200); err == nil {
		t.Fatal("expected an error for a non-integer")
	}
	if _, err := parsePositiveInt("0", 25, 1, 200); err == nil {
		t.Fatal("expected an error below the minimum")
	}
}
