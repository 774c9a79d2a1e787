package probe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

func TestIsFreeProvider(t *testing.T) {
	assert.True(t, probe.IsFreeProvider("gmail.com"))
	assert.True(t, probe.IsFreeProvider("GMAIL.COM"))
	assert.True(t, probe.IsFreeProvider("proton.me"))
	assert.False(t, probe.IsFreeProvider("example.com"))
	assert.False(t, probe.IsFreeProvider("corp.example.org"))
}

func TestDomainProbe_Run_FreeProviderEmitsNothing(t *testing.T) {
	p := probe.NewDomainProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	require.NoError(t, p.Run(context.Background(), probe.EmailSeed("user@gmail.com"), 1, "root-id", emit))
	assert.Empty(t, emitted)
}

func TestEmailMD5(t *testing.T) {
	// Known vector from the Gravatar docs.
	assert.Equal(t, "0bc83cb571cd1c50ba6f3e8a78ef1346",
		probe.EmailMD5("MyEmailAddress@example.com "))
	assert.Equal(t, probe.EmailMD5("a@b.io"), probe.EmailMD5(" A@B.IO "))
}
