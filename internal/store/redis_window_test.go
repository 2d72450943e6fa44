package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Allow feeds the script millisecond timestamps and a millisecond window,
// so every Redis command consuming the window must take milliseconds. A
// seconds-based EXPIRE would stretch a 1m window's key TTL to ~16.7h.
func TestSlidingWindowScriptKeepsMillisecondUnits(t *testing.T) {
	assert.Contains(t, slidingWindowScript, `"PEXPIRE"`)
	assert.False(t, strings.Contains(slidingWindowScript, `"EXPIRE"`),
		"seconds-based expiry would not match the script's millisecond window math")
}
