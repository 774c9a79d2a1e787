package probe

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/trace-osint/trace/internal/model"
)

func TestBreachSeverity(t *testing.T) {
	cases := []struct {
		exposed string
		want    model.Severity
	}{
		{"Plaintext Passwords;Email addresses", model.SeverityCritical},
		{"SSN;Names", model.SeverityCritical},
		{"Credit Card Numbers", model.SeverityCritical},
		{"Passwords;Email addresses", model.SeverityHigh},
		{"Phone numbers;Physical addresses", model.SeverityHigh},
		{"Phone numbers", model.SeverityMedium},
		{"Date of Birth", model.SeverityMedium},
		{"Email addresses;Usernames", model.SeverityLow},
		{"", model.SeverityLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, breachSeverity(tc.exposed), "exposed %q", tc.exposed)
	}
}

func TestSplitSemis(t *testing.T) {
	assert.Equal(t, []string{"Passwords", "Emails"}, splitSemis("Passwords; Emails"))
	assert.Equal(t, []string{"One"}, splitSemis(";One;;"))
	assert.Empty(t, splitSemis(""))
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "short", trim("short", 10))
	assert.Equal(t, "abcde…", trim("abcdefgh", 5))
}

func TestTrim_RuneBoundaries(t *testing.T) {
	// Cutting bytes mid-rune would emit invalid UTF-8.
	assert.Equal(t, "ééééé…", trim(strings.Repeat("é", 10), 5))
	out := trim("日本語のテキストです", 4)
	assert.Equal(t, "日本語の…", out)
	assert.True(t, utf8.ValidString(out))
}
