package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

const xposedOrNotBase = "https://api.xposedornot.com/v1"

// BreachProbe queries the XposedOrNot breach aggregator for an email
// address. The annotated analytics endpoint is canonical; when it
// rate-limits, the probe falls back to the plain membership endpoint.
type BreachProbe struct {
	deps Deps
}

func NewBreachProbe(deps Deps) *BreachProbe { return &BreachProbe{deps: deps} }

func (p *BreachProbe) Name() string           { return "Breach Lookup" }
func (p *BreachProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

type breachAnalytics struct {
	ExposedBreaches struct {
		Details []struct {
			Breach       string `json:"breach"`
			Details      string `json:"details"`
			XposedData   string `json:"xposed_data"`
			XposedDate   string `json:"xposed_date"`
			Records      int64  `json:"xposed_records"`
			PasswordRisk string `json:"password_risk"`
		} `json:"breaches_details"`
	} `json:"ExposedBreaches"`
	BreachMetrics struct {
		Risk []struct {
			RiskScore float64 `json:"risk_score"`
		} `json:"risk"`
	} `json:"BreachMetrics"`
	PastesSummary struct {
		Count int `json:"cnt"`
	} `json:"PastesSummary"`
}

func (p *BreachProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	var analytics breachAnalytics
	outcome, err := p.deps.Client.GetJSON(ctx,
		xposedOrNotBase+"/breach-analytics?email="+url.QueryEscape(email), &analytics, nil)
	if err != nil {
		p.deps.Logger.Debug("breach analytics unreachable", zap.Error(err))
		return nil
	}

	switch {
	case outcome.StatusCode == 404:
		f := model.New(model.TypeBreach, model.SeverityLow, "No Breaches Found")
		f.Description = "Email not present in any indexed data breach"
		f.Source = "XposedOrNot"
		f.ParentID = parentID
		f.LinkLabel = "checked against"
		emit(f)
		return nil
	case outcome.StatusCode == 429:
		p.runFallback(ctx, email, parentID, emit)
		return nil
	case !outcome.OK():
		p.deps.Logger.Debug("breach analytics failed", zap.Int("status", outcome.StatusCode))
		return nil
	}

	details := analytics.ExposedBreaches.Details
	if len(details) == 0 {
		return nil
	}

	var riskScore float64
	if len(analytics.BreachMetrics.Risk) > 0 {
		riskScore = analytics.BreachMetrics.Risk[0].RiskScore
	}
	summarySev := model.SeverityMedium
	if riskScore >= 7 {
		summarySev = model.SeverityCritical
	} else if riskScore >= 4 {
		summarySev = model.SeverityHigh
	}

	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Breach)
	}

	summary := model.New(model.TypeBreach, summarySev,
		fmt.Sprintf("Found in %d Data Breach(es)", len(details)))
	summary.Description = "Email appears in indexed breach corpora"
	summary.Source = "XposedOrNot"
	summary.SourceURL = "https://xposedornot.com"
	summary.Data = map[string]any{
		"breach_count": len(details),
		"breaches":     names,
		"risk_score":   riskScore,
		"remediation":  "Change passwords on affected services; enable 2FA",
	}
	summary.ParentID = parentID
	summary.LinkLabel = "exposed in"
	emit(summary)

	for _, d := range details {
		f := model.New(model.TypeBreach, breachSeverity(d.XposedData), "Breach: "+d.Breach)
		f.Description = trim(d.Details, 200)
		f.Source = "XposedOrNot"
		f.Data = map[string]any{
			"breach":        d.Breach,
			"exposed_data":  splitSemis(d.XposedData),
			"breach_date":   d.XposedDate,
			"records":       d.Records,
			"password_risk": d.PasswordRisk,
		}
		f.ParentID = summary.ID
		f.LinkLabel = "exposed in"
		emit(f)
	}

	if n := analytics.PastesSummary.Count; n > 0 {
		f := model.New(model.TypeBreach, model.SeverityHigh,
			fmt.Sprintf("Found in %d Paste(s)", n))
		f.Description = "Email appears in paste-site dumps indexed by the aggregator"
		f.Source = "XposedOrNot"
		f.Data = map[string]any{"paste_count": n}
		f.ParentID = parentID
		f.LinkLabel = "pasted in"
		emit(f)
	}
	return nil
}

// runFallback hits the membership endpoint, which returns only breach
// names. Emitted findings carry no per-breach annotation.
func (p *BreachProbe) runFallback(ctx context.Context, email, parentID string, emit EmitFunc) {
	var out struct {
		Breaches [][]string `json:"breaches"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		xposedOrNotBase+"/check-email/"+url.PathEscape(email), &out, nil)
	if err != nil || !outcome.OK() || len(out.Breaches) == 0 || len(out.Breaches[0]) == 0 {
		if err != nil {
			p.deps.Logger.Debug("breach fallback unreachable", zap.Error(err))
		}
		return
	}
	names := out.Breaches[0]
	f := model.New(model.TypeBreach, model.SeverityHigh,
		fmt.Sprintf("Found in %d Data Breach(es)", len(names)))
	f.Description = "Aggregator rate-limited; names only, no exposure detail"
	f.Source = "XposedOrNot"
	f.Data = map[string]any{"breaches": names, "degraded": true}
	f.ParentID = parentID
	f.LinkLabel = "exposed in"
	emit(f)
}

// breachSeverity ranks a breach by what it leaked.
func breachSeverity(exposed string) model.Severity {
	low := strings.ToLower(exposed)
	hasPassword := strings.Contains(low, "password")
	switch {
	case strings.Contains(low, "plaintext password"),
		strings.Contains(low, "ssn"),
		strings.Contains(low, "credit card"):
		return model.SeverityCritical
	case hasPassword,
		strings.Contains(low, "phone") && strings.Contains(low, "address"):
		return model.SeverityHigh
	case strings.Contains(low, "phone"),
		strings.Contains(low, "address"),
		strings.Contains(low, "date of birth"),
		strings.Contains(low, "dob"):
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func splitSemis(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// trim shortens to n runes; slicing bytes could split a multi-byte rune
// and put invalid UTF-8 on the wire.
func trim(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
