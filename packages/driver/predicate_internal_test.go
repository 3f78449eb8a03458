package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote_TruncatesRunes(t *testing.T) {
	long := strings.Repeat("ж", 100)
	q := quote(long)
	assert.True(t, len([]rune(q)) < 90)
	assert.Contains(t, q, "...")
}
