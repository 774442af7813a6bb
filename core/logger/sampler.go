package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den calls through. The zero value lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	num = min(num, den)
	s.ratio.Store(uint64(num)<<32 | uint64(den))
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&(1<<32-1)
	return (s.seen.Add(1)-1)%den < num
}

// parseRatio reads "num/den" or "den" (one in den). Anything else yields 0/0,
// which disables sampling.
func parseRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if den, err := strconv.Atoi(spec); err == nil && den > 0 {
		return 1, den
	}
	return 0, 0
}
