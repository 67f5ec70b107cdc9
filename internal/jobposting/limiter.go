package jobposting

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// maxLimitedHosts bounds the number of per-host limiters kept in memory.
const maxLimitedHosts = 1024

// hostLimiter rate-limits requests per hostname. When more than max hosts are
// tracked the least recently used limiter is dropped.
type hostLimiter struct {
	mu  sync.Mutex
	m   map[string]*hostEntry
	r   rate.Limit
	b   int
	max int
	seq uint64
}

type hostEntry struct {
	lim      *rate.Limiter
	lastUsed uint64
}

func newHostLimiter(reqPerSec float64, burst int) *hostLimiter {
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &hostLimiter{
		m:   make(map[string]*hostEntry),
		r:   r,
		b:   burst,
		max: maxLimitedHosts,
	}
}

func (hl *hostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.seq++
	if e, ok := hl.m[host]; ok {
		e.lastUsed = hl.seq
		return e.lim
	}

	if len(hl.m) >= hl.max {
		hl.evictOldest()
	}
	e := &hostEntry{lim: rate.NewLimiter(hl.r, hl.b), lastUsed: hl.seq}
	hl.m[host] = e
	return e.lim
}

func (hl *hostLimiter) evictOldest() {
	var (
		oldest string
		seen   uint64
		found  bool
	)
	for host, e := range hl.m {
		if !found || e.lastUsed < seen {
			oldest, seen, found = host, e.lastUsed, true
		}
	}
	if found {
		delete(hl.m, oldest)
	}
}

func (hl *hostLimiter) waitURL(ctx context.Context, u *url.URL) error {
	return hl.limiterFor(u.Host).Wait(ctx)
}
