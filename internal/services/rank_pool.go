package services

import (
	"context"
	"sync"

	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// ChannelHits is the per-channel citation status of one query. ChatGPT is
// approximated by Bing results, Perplexity and Google by Google results.
type ChannelHits struct {
	ChatGPT    serp.Result `json:"chatgpt"`
	Perplexity serp.Result `json:"perplexity"`
	Google     serp.Result `json:"google"`
}

// Any reports whether at least one channel cites the domain, and the first
// cited URL.
func (h ChannelHits) Any() (bool, *string) {
	for _, r := range []serp.Result{h.Google, h.ChatGPT, h.Perplexity} {
		if r.Ranked {
			return true, r.URL
		}
	}
	return false, nil
}

func hitsFrom(r *RankResult) ChannelHits {
	if r == nil {
		return ChannelHits{}
	}
	return ChannelHits{ChatGPT: r.Bing, Perplexity: r.Google, Google: r.Google}
}

// rankPool ranks queries against domain with a fixed number of workers
// pulling from a shared queue. A failed lookup yields unranked hits for that
// query only. onResult runs on the calling goroutine, one result at a time,
// in completion order. Unstarted queries are dropped once ctx is done.
func rankPool(ctx context.Context, r RankChecker, queries []string, domain string, workers int, onResult func(query string, hits ChannelHits)) {
	if len(queries) == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(queries) {
		workers = len(queries)
	}

	type result struct {
		query string
		hits  ChannelHits
	}
	queue := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range queue {
				res, err := rankBoth(ctx, r, q, domain)
				_ = noteUpstream("serpapi", err)
				results <- result{query: q, hits: hitsFrom(res)}
			}
		}()
	}
	go func() {
		defer close(queue)
		for _, q := range queries {
			select {
			case queue <- q:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		onResult(res.query, res.hits)
	}
}
