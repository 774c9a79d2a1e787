package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// HudsonRockProbe checks the Hudson Rock cavalier index for infostealer
// infections tied to the address. A hit means a machine that logged into
// accounts with this email was running credential-stealing malware, the
// single worst signal a scan can produce.
type HudsonRockProbe struct {
	deps Deps
}

func NewHudsonRockProbe(deps Deps) *HudsonRockProbe { return &HudsonRockProbe{deps: deps} }

func (p *HudsonRockProbe) Name() string           { return "Infostealer Search" }
func (p *HudsonRockProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

type stealerReport struct {
	Stealers []struct {
		StealerFamily   string   `json:"stealer_family"`
		DateCompromised string   `json:"date_compromised"`
		ComputerName    string   `json:"computer_name"`
		OperatingSystem string   `json:"operating_system"`
		TopPasswords    []string `json:"top_passwords"`
		TopLogins       []string `json:"top_logins"`
	} `json:"stealers"`
}

func (p *HudsonRockProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	var report stealerReport
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://cavalier.hudsonrock.com/api/json/v2/osint-tools/search-by-email?email="+url.QueryEscape(email),
		&report, nil)
	if err != nil {
		p.deps.Logger.Debug("hudson rock unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() || len(report.Stealers) == 0 {
		return nil
	}

	summary := model.New(model.TypePassword, model.SeverityCritical,
		fmt.Sprintf("Infostealer Malware: %d Infection(s)", len(report.Stealers)))
	summary.Description = "Credentials for this address were harvested by stealer malware on an infected machine"
	summary.Source = "Hudson Rock"
	summary.SourceURL = "https://cavalier.hudsonrock.com"
	summary.Data = map[string]any{
		"infection_count": len(report.Stealers),
		"remediation":     "Treat every saved password on the infected machine as compromised; reinstall the OS",
	}
	summary.ParentID = parentID
	summary.LinkLabel = "compromised by"
	emit(summary)

	for _, s := range report.Stealers[:min(len(report.Stealers), 5)] {
		title := "Infection"
		if s.DateCompromised != "" {
			title = "Infection: " + s.DateCompromised
		}
		f := model.New(model.TypePassword, model.SeverityCritical, title)
		f.Description = "Machine compromised by " + orUnknown(s.StealerFamily) + " stealer"
		f.Source = "Hudson Rock"
		f.Data = map[string]any{
			"stealer_family":   orUnknown(s.StealerFamily),
			"computer_name":    s.ComputerName,
			"operating_system": s.OperatingSystem,
			"date_compromised": s.DateCompromised,
		}
		f.ParentID = summary.ID
		f.LinkLabel = "infected"
		emit(f)

		// Logged credentials confirm password exposure outright.
		if len(s.TopPasswords) > 0 {
			pw := model.New(model.TypePassword, model.SeverityCritical, "Plaintext Passwords Captured")
			pw.Description = fmt.Sprintf("%d password(s) present in the stealer log", len(s.TopPasswords))
			pw.Source = "Hudson Rock"
			pw.Data = map[string]any{"password_count": len(s.TopPasswords), "password_exposed": true}
			pw.ParentID = f.ID
			pw.LinkLabel = "captured"
			emit(pw)
		}
		for _, login := range s.TopLogins[:min(len(s.TopLogins), 5)] {
			if login == "" || strings.EqualFold(login, email) {
				continue
			}
			u := model.New(model.TypeUsername, model.SeverityHigh, "Username Discovered: "+login)
			u.Description = "Login name captured in the stealer log"
			u.Source = "Hudson Rock"
			u.Data = map[string]any{
				"username":         login,
				"discovery_method": "stealer_log",
				"confidence":       "high",
			}
			u.ParentID = f.ID
			u.LinkLabel = "logged in as"
			emit(u)
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
