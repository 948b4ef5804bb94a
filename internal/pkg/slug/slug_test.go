package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	cases := map[string]string{
		"My Holiday Photo":   "my-holiday-photo",
		"Crème brûlée":       "creme-brulee",
		"  --weird__name-- ": "weird-name",
		"résumé (final) v2":  "resume-final-v2",
		"日本語":                "",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, From(in), "input %q", in)
	}
}

func TestFrom_TruncatesLongNames(t *testing.T) {
	got := From(strings.Repeat("a", 200))
	assert.Len(t, got, maxLength)
}
