package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trace-osint/trace/internal/model"
)

// LocationInferenceProbe fuses every location clue the scan produced into
// one weighted estimate. Purely computational.
type LocationInferenceProbe struct {
	deps Deps
}

func NewLocationInferenceProbe(deps Deps) *LocationInferenceProbe {
	return &LocationInferenceProbe{deps: deps}
}

func (p *LocationInferenceProbe) Name() string           { return "Location Inference" }
func (p *LocationInferenceProbe) Accepts(seed Seed) bool { return seed.Kind == SeedProfile }

// sourceWeights reflect how reliably each source field states a real
// place of residence.
var sourceWeights = map[string]float64{
	"github":          0.9,
	"gravatar":        0.85,
	"keybase":         0.85,
	"social_profile":  0.8,
	"reddit_activity": 0.6,
	"bio_mention":     0.5,
}

const defaultSourceWeight = 0.4

var locationAbbrevs = map[string]string{
	"nyc": "new york city", "ny": "new york", "sf": "san francisco",
	"la": "los angeles", "uk": "united kingdom", "usa": "united states",
	"us": "united states", "pdx": "portland", "atl": "atlanta",
	"philly": "philadelphia", "vegas": "las vegas",
}

// LocationEstimate is one scored candidate place.
type LocationEstimate struct {
	Place      string
	Confidence float64
	Sources    []string
}

type weightedClue struct {
	source     string
	weight     float64
	confidence float64
}

// InferLocation scores all clues and returns candidates best-first. Each
// group scores the source-weighted mean of per-clue confidence plus a
// corroboration bonus; candidates under 0.3 are dropped entirely.
func InferLocation(clues []LocationClue) []LocationEstimate {
	groups := map[string][]weightedClue{}
	display := map[string]string{}

	add := func(place, source string, weight, confidence float64) {
		key := strings.ToLower(place)
		groups[key] = append(groups[key], weightedClue{source, weight, confidence})
		if _, ok := display[key]; !ok {
			display[key] = titleWords(place)
		}
	}

	for _, clue := range clues {
		norm := normalizePlace(clue.Value)
		if norm == "" {
			continue
		}
		weight, ok := sourceWeights[clue.Source]
		if !ok {
			weight = defaultSourceWeight
		}
		confidence := clue.Confidence
		if confidence <= 0 {
			confidence = 0.5
		}
		add(norm, clue.Source, weight, confidence)
		// "Portland, OR" also supports plain "Portland", at a discount.
		if city, _, found := strings.Cut(norm, ","); found {
			if city = strings.TrimSpace(city); city != "" && city != norm {
				add(city, clue.Source, weight, confidence*0.8)
			}
		}
	}

	var out []LocationEstimate
	for key, wcs := range groups {
		var weightSum, confSum float64
		sources := make([]string, 0, len(wcs))
		seenSource := map[string]bool{}
		for _, wc := range wcs {
			weightSum += wc.weight
			confSum += wc.weight * wc.confidence
			if !seenSource[wc.source] {
				seenSource[wc.source] = true
				sources = append(sources, wc.source)
			}
		}
		score := confSum/weightSum + minF(0.1*float64(len(wcs)), 0.3)
		if score > 1.0 {
			score = 1.0
		}
		if score < 0.3 {
			continue
		}
		out = append(out, LocationEstimate{
			Place:      display[key],
			Confidence: score,
			Sources:    sources,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Place < out[j].Place
	})
	return out
}

func normalizePlace(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || len(s) > 80 {
		return ""
	}
	parts := strings.Split(s, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if full, ok := locationAbbrevs[part]; ok {
			part = full
		}
		parts[i] = part
	}
	return strings.Join(parts, ", ")
}

func (p *LocationInferenceProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	estimates := InferLocation(seed.Profile.Locations)
	if len(estimates) == 0 {
		return nil
	}

	best := estimates[0]
	sev := model.SeverityLow
	confidence := "low"
	switch {
	case best.Confidence >= 0.8:
		sev, confidence = model.SeverityHigh, "high"
	case best.Confidence >= 0.5:
		sev, confidence = model.SeverityMedium, "medium"
	}

	f := model.New(model.TypeLocation, sev, "Probable Location: "+best.Place)
	f.Description = fmt.Sprintf("Corroborated by %d source(s): %s",
		len(best.Sources), strings.Join(best.Sources, ", "))
	f.Source = "Correlation Engine"
	f.Data = map[string]any{
		"location":   best.Place,
		"confidence": confidence,
		"score":      round2(best.Confidence),
		"sources":    best.Sources,
	}
	f.ParentID = parentID
	f.LinkLabel = "probably lives in"
	emit(f)

	var alternatives []map[string]any
	for _, est := range estimates[1:] {
		if len(est.Sources) < 2 {
			continue
		}
		alternatives = append(alternatives, map[string]any{
			"location": est.Place,
			"score":    round2(est.Confidence),
			"sources":  est.Sources,
		})
	}
	if len(alternatives) > 0 {
		alt := model.New(model.TypeLocation, model.SeverityLow, "Alternative Locations")
		alt.Description = fmt.Sprintf("%d other place(s) with multi-source support", len(alternatives))
		alt.Source = "Correlation Engine"
		alt.Data = map[string]any{"alternatives": alternatives}
		alt.ParentID = f.ID
		alt.LinkLabel = "may also be"
		emit(alt)
	}
	return nil
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
