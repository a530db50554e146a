package testcase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/judge/testcase"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newJudgedatServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/testcases/ITP1_1_A/header", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		_, _ = w.Write([]byte(`{"problemId":"ITP1_1_A","headers":[{"serial":2,"name":"b"},{"serial":1,"name":"a"}]}`))
	})
	mux.HandleFunc("/testcases/ITP1_1_A/1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		_, _ = w.Write([]byte(`{"serial":1,"in":"1 2\r\n","out":"3\r\n"}`))
	})
	mux.HandleFunc("/testcases/ITP1_1_A/9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"serial":9}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPProvider(t *testing.T) {
	var hits int64
	server := newJudgedatServer(t, &hits)
	provider := testcase.NewHTTPProvider(testcase.Config{BaseURL: server.URL + "/", Timeout: time.Second})
	ctx := context.Background()

	headers, err := provider.ListHeaders(ctx, "ITP1_1_A")
	if err != nil {
		t.Fatalf("list headers failed: %v", err)
	}
	if len(headers) != 2 || headers[0].Serial != 2 || headers[1].Serial != 1 {
		t.Fatalf("unexpected headers: %+v", headers)
	}

	tc, err := provider.Fetch(ctx, "ITP1_1_A", 1)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if tc.Input != "1 2\r\n" || tc.ExpectedOutput != "3\r\n" {
		t.Fatalf("unexpected test case: %+v", tc)
	}

	if _, err := provider.Fetch(ctx, "ITP1_1_A", 9); err == nil {
		t.Fatalf("expected error for missing in/out")
	}
	if _, err := provider.Fetch(ctx, "ITP1_1_A", 404); err == nil {
		t.Fatalf("expected error for unknown serial")
	}
	if _, err := provider.ListHeaders(ctx, ""); err == nil {
		t.Fatalf("expected error for empty problem id")
	}
}

func TestCachedProvider(t *testing.T) {
	var hits int64
	server := newJudgedatServer(t, &hits)

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	provider := testcase.NewCachedProvider(
		testcase.NewHTTPProvider(testcase.Config{BaseURL: server.URL}),
		rc,
		time.Hour,
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		headers, err := provider.ListHeaders(ctx, "ITP1_1_A")
		if err != nil || len(headers) != 2 {
			t.Fatalf("list headers failed: %v %+v", err, headers)
		}
		tc, err := provider.Fetch(ctx, "ITP1_1_A", 1)
		if err != nil || tc.ExpectedOutput != "3\r\n" {
			t.Fatalf("fetch failed: %v %+v", err, tc)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Fatalf("expected 2 remote hits, got %d", got)
	}
	if !mr.Exists("testcase:header:ITP1_1_A") || !mr.Exists("testcase:case:ITP1_1_A:1") {
		t.Fatalf("expected cache keys to be written")
	}
}
