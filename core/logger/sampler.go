package logger

import (
	"strconv"
	"strings"
	"sync"
)

// sampleGate passes the first pass events out of every window of size of.
// A zero gate passes everything.
type sampleGate struct {
	mu   sync.Mutex
	pass int
	of   int
	seen int
}

func newSampleGate(pass, of int) *sampleGate {
	g := &sampleGate{}
	g.Set(pass, of)
	return g
}

// Set reconfigures the ratio and restarts the window. Non-positive values
// disable sampling.
func (g *sampleGate) Set(pass, of int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pass <= 0 || of <= 0 {
		g.pass, g.of, g.seen = 0, 0, 0
		return
	}
	if pass > of {
		pass = of
	}
	g.pass = pass
	g.of = of
	g.seen = 0
}

// Allow reports whether the current event passes the gate.
func (g *sampleGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.of <= 0 {
		return true
	}
	g.seen++
	if g.seen > g.of {
		g.seen = 1
	}
	return g.seen <= g.pass
}

// parseSampleSpec reads a ratio written as "n/d", or a bare divisor where
// "50" means 1 in 50. Unparseable input yields 0, 0.
func parseSampleSpec(spec string) (pass, of int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if num, den, found := strings.Cut(spec, "/"); found {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
