package probe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/probe"
)

const dorkPage = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fpastebin.com%2Fabc123&amp;rut=x">leak</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.com/direct">direct</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.com/direct">duplicate</a>
</div>
<div class="result">
  <a class="result__snippet" href="https://example.com/snippet">not a result link</a>
</div>
`

func TestExtractResultLinks(t *testing.T) {
	links := probe.ExtractResultLinks(dorkPage, 5)

	require.Len(t, links, 2)
	assert.Equal(t, "https://pastebin.com/abc123", links[0], "redirect links are unwrapped")
	assert.Equal(t, "https://example.com/direct", links[1])
}

func TestExtractResultLinks_Limit(t *testing.T) {
	links := probe.ExtractResultLinks(dorkPage, 1)
	assert.Len(t, links, 1)
}

func TestExtractResultLinks_Empty(t *testing.T) {
	assert.Empty(t, probe.ExtractResultLinks("<html><body>no results</body></html>", 5))
}
