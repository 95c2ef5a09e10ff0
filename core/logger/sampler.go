package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets num out of every den calls through, in a fixed pattern: the first num
// calls of each window pass.
type ratioSampler struct {
	ratio atomic.Uint64 // num<<32 | den; zero disables sampling
	n     atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set changes the ratio and restarts the window. A non-positive value lets everything through.
func (s *ratioSampler) Set(num, den int) {
	var packed uint64
	if num > 0 && den > 0 {
		packed = uint64(min(num, den))<<32 | uint64(den)
	}
	s.ratio.Store(packed)
	s.n.Store(0)
}

func (s *ratioSampler) Allow() bool {
	packed := s.ratio.Load()
	if packed == 0 {
		return true
	}
	num, den := packed>>32, packed&0xffffffff
	pos := (s.n.Add(1) - 1) % den
	return pos < num
}

// parseRatioSpec reads "n/d" or "d" (meaning 1/d). Anything unparsable or non-positive is 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if n, d, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if d, err := strconv.Atoi(spec); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
