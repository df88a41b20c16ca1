package tiktok

import (
	"math"
	"strconv"
	"strings"
)

// ParseCount converts a displayed popularity count such as "1,234", "12.3K"
// or "4M" into a number. Empty or unparseable input yields 0; the result is
// never negative.
func ParseCount(text string) int64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	s = strings.ToUpper(strings.ReplaceAll(s, ",", ""))

	switch {
	case strings.HasSuffix(s, "K"):
		return scaled(leadingFloat(s), 1e3)
	case strings.HasSuffix(s, "M"):
		return scaled(leadingFloat(s), 1e6)
	}
	return leadingInt(s)
}

// NormalizeRecord applies ParseCount to one field of r. A null field is 0.
func NormalizeRecord(r RawRecord, field string) int64 {
	v, _ := r.Get(field)
	return ParseCount(v)
}

func scaled(f float64, mult float64) int64 {
	v := math.Round(f * mult)
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// leadingFloat parses the longest prefix of digits with at most one '.'.
func leadingFloat(s string) float64 {
	end, dot := 0, false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func leadingInt(s string) int64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
