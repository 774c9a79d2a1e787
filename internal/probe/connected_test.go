package probe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

func TestExtractBioHandles(t *testing.T) {
	bio := "Dev. Find me at github.com/jdoe and twitter.com/jdoe_dev. IG: @jane.doe"
	refs := probe.ExtractBioHandles(bio)

	byPlatform := map[string]string{}
	for _, ref := range refs {
		byPlatform[ref.Platform] = ref.Username
	}
	assert.Equal(t, "jdoe", byPlatform["github"])
	assert.Equal(t, "jdoe_dev", byPlatform["twitter"])
	assert.Equal(t, "jane.doe", byPlatform["instagram"])
}

func TestExtractBioHandles_LinkedInAndYouTube(t *testing.T) {
	refs := probe.ExtractBioHandles("see linkedin.com/in/jane-doe-123 or youtube.com/@janedoe")

	byPlatform := map[string]string{}
	for _, ref := range refs {
		byPlatform[ref.Platform] = ref.Username
	}
	assert.Equal(t, "jane-doe-123", byPlatform["linkedin"])
	assert.Equal(t, "janedoe", byPlatform["youtube"])
}

func TestExtractBioHandles_NoHandles(t *testing.T) {
	assert.Empty(t, probe.ExtractBioHandles("just a person who likes plants"))
}

func TestConnectedAccountsProbe_Run_BioMentions(t *testing.T) {
	p := probe.NewConnectedAccountsProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	seed := probe.ProfileSeed(probe.Profile{
		Bios: []string{"code at github.com/jdoe, shoutbox at twitter.com/jdoe"},
		Accounts: []probe.AccountRef{
			{Platform: "github", Username: "jdoe"}, // already known, must not repeat
			{Platform: "reddit", Username: "jdoe"},
		},
	})
	require.NoError(t, p.Run(context.Background(), seed, 3, "root-id", emit))

	var linked []model.Finding
	var network *model.Finding
	for i, f := range emitted {
		switch f.Type {
		case model.TypeAccount:
			linked = append(linked, f)
		case model.TypeSocial:
			network = &emitted[i]
		}
	}

	require.Len(t, linked, 1, "known accounts are not re-reported")
	assert.Equal(t, "Linked: Twitter @jdoe", linked[0].Title)
	assert.Equal(t, "bio_mention", linked[0].Data["discovery_method"])

	// 1 new connection + 2 known accounts = 3 -> network summary fires.
	require.NotNil(t, network)
	assert.Equal(t, "Account Network Mapped", network.Title)
	assert.Equal(t, 3, network.Data["account_count"])
}

func TestConnectedAccountsProbe_Run_NoConnectionsNoSummary(t *testing.T) {
	p := probe.NewConnectedAccountsProbe(probe.Deps{})
	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	seed := probe.ProfileSeed(probe.Profile{
		Bios: []string{"nothing to see here"},
		Accounts: []probe.AccountRef{
			{Platform: "github", Username: "jdoe"},
			{Platform: "reddit", Username: "jdoe"},
			{Platform: "keybase", Username: "jdoe"},
		},
	})
	require.NoError(t, p.Run(context.Background(), seed, 3, "root-id", emit))
	assert.Empty(t, emitted)
}
