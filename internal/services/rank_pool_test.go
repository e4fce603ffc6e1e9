package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

func TestRankPool_BoundsWorkersAndDeliversAll(t *testing.T) {
	r := &stubRanker{google: []string{"even"}}
	var queries []string
	for i := 0; i < 30; i++ {
		kind := "odd"
		if i%2 == 0 {
			kind = "even"
		}
		queries = append(queries, fmt.Sprintf("%s %d", kind, i))
	}

	got := map[string]ChannelHits{}
	rankPool(context.Background(), r, queries, "acme.io", 4, func(q string, h ChannelHits) {
		if _, dup := got[q]; dup {
			t.Errorf("query %q delivered twice", q)
		}
		got[q] = h
	})

	if len(got) != len(queries) {
		t.Fatalf("delivered %d of %d", len(got), len(queries))
	}
	if !got["even 0"].Google.Ranked || got["odd 1"].Google.Ranked {
		t.Fatalf("wrong hits: %+v / %+v", got["even 0"], got["odd 1"])
	}
	// Each worker has at most one query in flight, two engine lookups each.
	if p := r.peak.Load(); p > 8 {
		t.Fatalf("peak concurrent lookups = %d, want <= 8", p)
	}
}

func TestRankPool_FailureIsolatedPerQuery(t *testing.T) {
	r := &stubRanker{google: []string{"q"}, bing: []string{"q"}, fail: map[string]error{"q2": serp.ErrTimeout}}
	got := map[string]ChannelHits{}
	rankPool(context.Background(), r, []string{"q1", "q2", "q3"}, "acme.io", 2, func(q string, h ChannelHits) {
		got[q] = h
	})
	if !got["q1"].ChatGPT.Ranked || !got["q3"].Google.Ranked {
		t.Fatalf("healthy queries must rank: %+v", got)
	}
	if h := got["q2"]; h.ChatGPT.Ranked || h.Perplexity.Ranked || h.Google.Ranked {
		t.Fatalf("failed query must be unranked: %+v", h)
	}
}

func TestRankPool_StopsOnCancel(t *testing.T) {
	r := &stubRanker{block: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	queries := make([]string, 50)
	for i := range queries {
		queries[i] = fmt.Sprintf("q%d", i)
	}
	done := make(chan int)
	go func() {
		n := 0
		rankPool(ctx, r, queries, "acme.io", 2, func(string, ChannelHits) { n++ })
		done <- n
	}()

	cancel()
	close(r.block)
	if n := <-done; n >= len(queries) {
		t.Fatalf("cancelled pool delivered all %d queries", n)
	}
}

func TestChannelHits_Any(t *testing.T) {
	u := "https://acme.io/x"
	h := ChannelHits{ChatGPT: serp.Result{Ranked: true, URL: &u}}
	ok, url := h.Any()
	if !ok || url == nil || *url != u {
		t.Fatalf("Any = %v %v", ok, url)
	}
	if ok, url := (ChannelHits{}).Any(); ok || url != nil {
		t.Fatal("empty hits must not rank")
	}
}
