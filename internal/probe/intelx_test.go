package probe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trace-osint/trace/internal/probe"
)

func TestExtractLeakUsernames(t *testing.T) {
	text := `
jdoe99:hunter2secret
username: cooldev_42
login: site_admin
contact @handle_one for details
`
	names := probe.ExtractLeakUsernames(text, 10)

	assert.Contains(t, names, "jdoe99")
	assert.Contains(t, names, "cooldev_42")
	assert.Contains(t, names, "site_admin")
	assert.Contains(t, names, "handle_one")
}

func TestExtractLeakUsernames_FiltersNoise(t *testing.T) {
	text := `
admin:something123
password: letmein12
127.0.0.1:8080443
`
	names := probe.ExtractLeakUsernames(text, 10)

	assert.NotContains(t, names, "admin", "stopwords are dropped")
	assert.NotContains(t, names, "password")
	assert.NotContains(t, names, "127.0.0.1", "bare numbers are dropped")
}

func TestExtractLeakUsernames_DedupesAndLimits(t *testing.T) {
	text := "jdoe:secret01 JDOE:secret02 user: jdoe"
	names := probe.ExtractLeakUsernames(text, 10)
	assert.Equal(t, []string{"jdoe"}, names, "dedupe is case-insensitive")

	many := "aaa1:secret01 bbb2:secret02 ccc3:secret03"
	assert.Len(t, probe.ExtractLeakUsernames(many, 2), 2)
}
