package scan

import (
	"strings"

	"github.com/trace-osint/trace/internal/model"
)

// Severity bucket points and the cap each bucket can contribute.
const (
	criticalPoints, criticalCap = 25, 50
	highPoints, highCap         = 10, 30
	mediumPoints, mediumCap     = 3, 15
	lowPoints, lowCap           = 1, 5
)

// Bonus is one correlation rule that fired during scoring.
type Bonus struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// Report is the scored risk assessment of a finished scan.
type Report struct {
	Score   int            `json:"score"`
	Band    model.Severity `json:"band"`
	Buckets map[string]int `json:"buckets"`
	Bonuses []Bonus        `json:"bonuses,omitempty"`
	Summary string         `json:"summary"`
}

// Score rates the combined exposure of a finding set on a 0-100 scale.
// Per-severity contributions are capped so volume alone cannot saturate
// the score; correlation bonuses capture combinations that are worse than
// their parts.
func Score(findings []model.Finding) Report {
	var counts [5]int
	for _, f := range findings {
		counts[f.Severity.Weight()]++
	}

	buckets := map[string]int{
		"critical": capped(counts[4]*criticalPoints, criticalCap),
		"high":     capped(counts[3]*highPoints, highCap),
		"medium":   capped(counts[2]*mediumPoints, mediumCap),
		"low":      capped(counts[1]*lowPoints, lowCap),
	}
	score := buckets["critical"] + buckets["high"] + buckets["medium"] + buckets["low"]

	bonuses := correlationBonuses(findings)
	for _, b := range bonuses {
		score += b.Points
	}
	if score > 100 {
		score = 100
	}

	band := bandFor(score)
	return Report{
		Score:   score,
		Band:    band,
		Buckets: buckets,
		Bonuses: bonuses,
		Summary: summaryFor(band),
	}
}

func correlationBonuses(findings []model.Finding) []Bonus {
	var (
		hasPassword, hasBreach bool
		hasAddress, hasPhone   bool
		hasName, hasLocation   bool
		accountCount           int
	)
	for _, f := range findings {
		title := strings.ToLower(f.Title)
		switch f.Type {
		case model.TypePassword:
			hasPassword = true
		case model.TypeBreach:
			hasBreach = true
		case model.TypeAccount, model.TypeSocial:
			accountCount++
		}
		if strings.Contains(title, "password") {
			hasPassword = true
		}
		if strings.Contains(title, "exposed") || strings.Contains(title, "breach") {
			hasBreach = true
		}
		if strings.Contains(title, "home") || strings.Contains(title, "street") ||
			strings.Contains(title, "residence") || dataHas(f, "address") {
			hasAddress = true
		}
		if strings.Contains(title, "phone") || dataHas(f, "phone") {
			hasPhone = true
		}
		if strings.HasPrefix(title, "name:") || strings.HasPrefix(title, "probable name:") {
			hasName = true
		}
		if strings.HasPrefix(title, "location:") || strings.HasPrefix(title, "probable location:") {
			hasLocation = true
		}
	}

	var bonuses []Bonus
	if hasPassword && hasBreach {
		bonuses = append(bonuses, Bonus{"Passwords exposed in breach data", 15})
	}
	if hasAddress {
		bonuses = append(bonuses, Bonus{"Home address signals present", 15})
	}
	if hasPhone {
		bonuses = append(bonuses, Bonus{"Phone number exposed", 10})
	}
	if hasName && hasLocation {
		bonuses = append(bonuses, Bonus{"Real name and location both known", 5})
	}
	if accountCount > 10 {
		bonuses = append(bonuses, Bonus{"Large linkable account footprint", 5})
	}
	return bonuses
}

func dataHas(f model.Finding, key string) bool {
	if f.Data == nil {
		return false
	}
	for k := range f.Data {
		if strings.Contains(k, key) {
			return true
		}
	}
	return false
}

func bandFor(score int) model.Severity {
	switch {
	case score >= 70:
		return model.SeverityCritical
	case score >= 50:
		return model.SeverityHigh
	case score >= 30:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func summaryFor(band model.Severity) string {
	switch band {
	case model.SeverityCritical:
		return "Severe exposure. Exposed credentials or stealer activity demand immediate password rotation and 2FA everywhere."
	case model.SeverityHigh:
		return "Substantial exposure. Breach presence and linkable accounts make targeted phishing practical."
	case model.SeverityMedium:
		return "Moderate exposure. Scattered personal details could be assembled into a profile."
	default:
		return "Limited exposure. Little publicly linkable data was found for this address."
	}
}

func capped(points, limit int) int {
	if points > limit {
		return limit
	}
	return points
}
