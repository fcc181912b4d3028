package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter bounds login attempts per remote peer.
type Limiter struct {
	mu    sync.Mutex
	peers map[string]*entry
	rate  rate.Limit
	burst int
	now   func() time.Time
}

// New allows burst attempts at once and then perSecond attempts per second for each peer.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{peers: map[string]*entry{}, rate: rate.Limit(perSecond), burst: burst, now: time.Now}
}

func (l *Limiter) Allow(peer string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e := l.peers[peer]
	if e == nil {
		e = &entry{lim: rate.NewLimiter(l.rate, l.burst)}
		l.peers[peer] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Reset forgets the peer's history, typically after a successful login.
func (l *Limiter) Reset(peer string) {
	l.mu.Lock()
	delete(l.peers, peer)
	l.mu.Unlock()
}

// Sweep drops peers not seen within idle and returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for p, e := range l.peers {
		if e.seen.Before(cutoff) {
			delete(l.peers, p)
			n++
		}
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}
