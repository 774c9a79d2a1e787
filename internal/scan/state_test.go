package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
)

func TestState_ObserveUsernames(t *testing.T) {
	st := newState()

	f := model.New(model.TypeUsername, model.SeverityLow, "Potential Usernames Derived")
	f.Data = map[string]any{"usernames": []string{"jdoe", "johndoe", "jdoe"}}
	st.observe(f)

	g := model.New(model.TypeUsername, model.SeverityHigh, "Username Discovered: JDoe")
	g.Data = map[string]any{"username": "JDoe"} // dedupe is case-insensitive
	st.observe(g)

	seeds := st.seedUsernames(5)
	require.Len(t, seeds, 2)
	assert.Equal(t, "jdoe", seeds[0].value)
	assert.Equal(t, f.ID, seeds[0].parentID)
	assert.Equal(t, "johndoe", seeds[1].value)
	assert.Equal(t, 2, st.snapshotStats().UsernamesDiscovered)
}

func TestState_ObserveURLs(t *testing.T) {
	st := newState()

	f := model.New(model.TypeURL, model.SeverityMedium, "Website Listed")
	f.Data = map[string]any{
		"url":     "https://example.com/a",
		"website": "not-a-url", // non-http values are dropped
		"urls":    []any{"https://example.com/b", "https://example.com/a"},
	}
	st.observe(f)

	seeds := st.seedURLs(5)
	require.Len(t, seeds, 2)
	assert.Equal(t, "https://example.com/a", seeds[0].value)
	assert.Equal(t, f.ID, seeds[0].parentID)
	assert.Equal(t, 2, st.snapshotStats().URLsFound)
}

func TestState_ObserveSourceURL(t *testing.T) {
	st := newState()

	// A finding may carry its URL only as SourceURL (the Gravatar avatar
	// finding does); it must still feed the archive hop.
	f := model.New(model.TypeAccount, model.SeverityMedium, "Gravatar Profile Found")
	f.SourceURL = "https://gravatar.com/abc123"
	st.observe(f)

	seeds := st.seedURLs(5)
	require.Len(t, seeds, 1)
	assert.Equal(t, "https://gravatar.com/abc123", seeds[0].value)
	assert.Equal(t, f.ID, seeds[0].parentID)
}

func TestState_SeedLimits(t *testing.T) {
	st := newState()
	f := model.New(model.TypeUsername, model.SeverityLow, "Potential Usernames Derived")
	f.Data = map[string]any{"usernames": []string{"a1x", "b2x", "c3x", "d4x"}}
	st.observe(f)

	assert.Len(t, st.seedUsernames(2), 2)
}

func TestState_SeedAccountsFiltersPlatforms(t *testing.T) {
	st := newState()

	reddit := model.New(model.TypeAccount, model.SeverityMedium, "Account Found: Reddit")
	reddit.Data = map[string]any{"platform": "Reddit", "username": "jdoe", "url": "https://reddit.com/user/jdoe"}
	st.observe(reddit)

	spotify := model.New(model.TypeAccount, model.SeverityMedium, "Account Found: Spotify")
	spotify.Data = map[string]any{"platform": "spotify", "username": "jdoe"}
	st.observe(spotify)

	// Same account emitted twice dedupes.
	again := model.New(model.TypeAccount, model.SeverityMedium, "Account Found: Reddit")
	again.Data = map[string]any{"platform": "reddit", "username": "JDOE"}
	st.observe(again)

	seeds := st.seedAccounts(4)
	require.Len(t, seeds, 1)
	assert.Equal(t, "reddit", seeds[0].ref.Platform)
	assert.Equal(t, "jdoe", seeds[0].ref.Username)
	assert.Equal(t, reddit.ID, seeds[0].parentID)
}

func TestState_SnapshotProfile(t *testing.T) {
	st := newState()

	f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Bio Published")
	f.Data = map[string]any{"bio": "hacker from Portland", "location": "Portland, OR", "location_source": "github"}
	st.observe(f)

	profile := st.snapshot()
	require.Len(t, profile.Bios, 1)
	require.Len(t, profile.Locations, 1)
	assert.Equal(t, "Portland, OR", profile.Locations[0].Value)
	assert.Equal(t, "github", profile.Locations[0].Source)
	assert.InDelta(t, 0.5, profile.Locations[0].Confidence, 0.001, "confidence defaults to 0.5")
}

func TestState_ObserveLocationConfidence(t *testing.T) {
	st := newState()

	f := model.New(model.TypeLocation, model.SeverityMedium, "Location: Lisbon")
	f.Data = map[string]any{"location": "Lisbon", "location_source": "keybase", "confidence": 0.9}
	st.observe(f)

	// String confidence bands fall back to the default.
	g := model.New(model.TypeLocation, model.SeverityLow, "Probable Timezone: UTC+0")
	g.Data = map[string]any{"location": "Lisbon", "location_source": "github", "confidence": "low"}
	st.observe(g)

	clues := st.snapshot().Locations
	require.Len(t, clues, 2)
	assert.InDelta(t, 0.9, clues[0].Confidence, 0.001)
	assert.InDelta(t, 0.5, clues[1].Confidence, 0.001)
}

func TestState_Stats(t *testing.T) {
	st := newState()
	st.observe(model.New(model.TypeBreach, model.SeverityCritical, "Breach: X"))
	st.observe(model.New(model.TypeAccount, model.SeverityHigh, "Account Found"))
	st.observe(model.New(model.TypeLocation, model.SeverityLow, "Probable Location: Lisbon"))

	stats := st.snapshotStats()
	assert.Equal(t, 1, stats.Breaches)
	assert.Equal(t, 1, stats.Accounts)
	assert.Equal(t, 1, stats.PersonalInfo)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 1, stats.High)
}
