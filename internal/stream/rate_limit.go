package stream

import "sync"

// defaultMaxTotal caps streams across all clients; each one holds a
// dashboard subscription.
const defaultMaxTotal = 500

// Denial reasons, also used as stream error metric labels.
const (
	limitPerIP  = "rate_limit"
	limitGlobal = "capacity"
)

// streamLimiter counts open snapshot streams per client IP and in total.
type streamLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotal
	}
	return &streamLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a slot for ip. On success it returns a release func that
// is safe to call more than once; otherwise it returns the denial reason.
func (l *streamLimiter) acquire(ip string) (release func(), denied string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return nil, limitGlobal
	case l.open[ip] >= l.maxPerIP:
		return nil, limitPerIP
	}
	l.open[ip]++
	l.total++

	var once sync.Once
	return func() { once.Do(func() { l.release(ip) }) }, ""
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.open[ip]--; l.open[ip] <= 0 {
		delete(l.open, ip)
	}
}

// count returns the open streams for ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}
