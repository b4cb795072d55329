// Package duration parses the compact duration specs users type when they
// create a giveaway ("1w2d", "3h 30m") and formats time remaining.
package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned by ParseStrict for specs outside the token grammar.
var ErrInvalid = errors.New("invalid duration spec")

var (
	tokenPattern  = regexp.MustCompile(`(\d+)([wdhms])`)
	strictPattern = regexp.MustCompile(`^(\d+[wdhms])+$`)
)

var unitSeconds = map[byte]int64{
	'w': 7 * 24 * 60 * 60,
	'd': 24 * 60 * 60,
	'h': 60 * 60,
	'm': 60,
	's': 1,
}

const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

// Parse scans spec for <digits><unit> tokens and returns their sum.
//
// Text that does not form a token is ignored, so "abc" parses to zero.
// Tokens too large to represent are skipped and the total saturates at the
// largest representable whole-second duration.
func Parse(spec string) time.Duration {
	var total int64
	for _, m := range tokenPattern.FindAllStringSubmatch(spec, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		unit := unitSeconds[m[2][0]]
		if n > maxSeconds/unit {
			total = maxSeconds
			continue
		}
		total += n * unit
		if total > maxSeconds {
			total = maxSeconds
		}
	}
	return time.Duration(total) * time.Second
}

// ParseStrict accepts only a spec made entirely of tokens. Whitespace and
// commas between tokens are allowed.
func ParseStrict(spec string) (time.Duration, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, spec)
	if !strictPattern.MatchString(compact) {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, spec)
	}
	return Parse(compact), nil
}

// FormatRemaining renders d as "1d 2h 3m 4s". Negative values render as zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	mins := secs / 60
	secs %= 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
}
