package probe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

func TestInferLocation_CorroboratedPlaceWins(t *testing.T) {
	clues := []probe.LocationClue{
		{Value: "Portland, OR", Source: "github", Confidence: 0.9},
		{Value: "portland, or", Source: "gravatar", Confidence: 0.8},
		{Value: "Berlin", Source: "bio_mention"},
	}
	estimates := probe.InferLocation(clues)
	require.NotEmpty(t, estimates)

	best := estimates[0]
	assert.Equal(t, "Portland, Or", best.Place)
	assert.GreaterOrEqual(t, best.Confidence, 0.8)
	assert.ElementsMatch(t, []string{"github", "gravatar"}, best.Sources)
}

func TestInferLocation_ExpandsAbbreviations(t *testing.T) {
	estimates := probe.InferLocation([]probe.LocationClue{
		{Value: "NYC", Source: "github"},
		{Value: "new york city", Source: "keybase"},
	})
	require.NotEmpty(t, estimates)
	assert.Equal(t, "New York City", estimates[0].Place)
	assert.Len(t, estimates[0].Sources, 2)
}

func TestInferLocation_DropsWeakCandidates(t *testing.T) {
	// A single default-confidence clue scores 0.5 + 0.1 = 0.6, so it
	// stays; nothing scores under the 0.3 floor here, but empty input
	// must yield nothing at all.
	assert.Empty(t, probe.InferLocation(nil))
	assert.Empty(t, probe.InferLocation([]probe.LocationClue{{Value: "   ", Source: "github"}}))
}

func TestInferLocation_DefaultConfidence(t *testing.T) {
	// No per-clue confidence means 0.5; a lone source's weight cancels
	// in the mean, leaving 0.5 plus the single-source bonus.
	estimates := probe.InferLocation([]probe.LocationClue{
		{Value: "Lisbon", Source: "somewhere_else"},
	})
	require.Len(t, estimates, 1)
	assert.InDelta(t, 0.6, estimates[0].Confidence, 0.001)
}

func TestInferLocation_WeightedMeanFavorsStrongSources(t *testing.T) {
	// github weighs 0.9 against 0.4 for an unknown source, so its 0.8
	// dominates: (0.9*0.8 + 0.4*0.2)/1.3 + 0.2 ≈ 0.815. A flat mean
	// would land on 0.7.
	estimates := probe.InferLocation([]probe.LocationClue{
		{Value: "Lisbon", Source: "github", Confidence: 0.8},
		{Value: "Lisbon", Source: "somewhere_else", Confidence: 0.2},
	})
	require.Len(t, estimates, 1)
	assert.InDelta(t, 0.815, estimates[0].Confidence, 0.005)
}

func TestInferLocation_CityOnlyDiscount(t *testing.T) {
	estimates := probe.InferLocation([]probe.LocationClue{
		{Value: "Berlin, Germany", Source: "github", Confidence: 1.0},
	})
	require.Len(t, estimates, 2)
	assert.Equal(t, "Berlin, Germany", estimates[0].Place)
	assert.InDelta(t, 1.0, estimates[0].Confidence, 0.001)
	assert.Equal(t, "Berlin", estimates[1].Place)
	assert.InDelta(t, 0.9, estimates[1].Confidence, 0.001, "city-only hint carries 0.8 of the confidence")
}

func TestLocationInferenceProbe_Run(t *testing.T) {
	p := probe.NewLocationInferenceProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	seed := probe.ProfileSeed(probe.Profile{
		Locations: []probe.LocationClue{
			{Value: "Portland, OR", Source: "github", Confidence: 0.9},
			{Value: "Portland, OR", Source: "social_profile", Confidence: 0.9},
		},
	})
	require.NoError(t, p.Run(context.Background(), seed, 3, "root-id", emit))
	require.NotEmpty(t, emitted)

	best := emitted[0]
	assert.Equal(t, model.TypeLocation, best.Type)
	assert.Contains(t, best.Title, "Probable Location:")
	assert.Equal(t, model.SeverityHigh, best.Severity)
	assert.Equal(t, "root-id", best.ParentID)
}

func TestLocationInferenceProbe_Run_NoClues(t *testing.T) {
	p := probe.NewLocationInferenceProbe(probe.Deps{})
	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	require.NoError(t, p.Run(context.Background(), probe.ProfileSeed(probe.Profile{}), 3, "root-id", emit))
	assert.Empty(t, emitted)
}
