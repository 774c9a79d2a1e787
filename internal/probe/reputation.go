package probe

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// ReputationProbe runs email-reputation reverse lookups: EmailRep for
// reputation and linked profiles, Disify for disposability, plus a
// first.last naming heuristic on the local part.
type ReputationProbe struct {
	deps Deps
}

func NewReputationProbe(deps Deps) *ReputationProbe { return &ReputationProbe{deps: deps} }

func (p *ReputationProbe) Name() string           { return "Reverse Lookup" }
func (p *ReputationProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

var firstLastRe = regexp.MustCompile(`^([a-z]+)\.([a-z]+)$`)

type emailRepResponse struct {
	Reputation string `json:"reputation"`
	Suspicious bool   `json:"suspicious"`
	References int    `json:"references"`
	Details    struct {
		Profiles          []string `json:"profiles"`
		DataBreach        bool     `json:"data_breach"`
		CredentialsLeaked bool     `json:"credentials_leaked"`
		LastSeen          string   `json:"last_seen"`
		DomainReputation  string   `json:"domain_reputation"`
	} `json:"details"`
}

func (p *ReputationProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	p.checkEmailRep(ctx, email, parentID, emit)
	p.checkDisposable(ctx, email, parentID, emit)
	p.inferName(email, parentID, emit)
	return nil
}

func (p *ReputationProbe) checkEmailRep(ctx context.Context, email, parentID string, emit EmitFunc) {
	var rep emailRepResponse
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://emailrep.io/"+url.PathEscape(email), &rep, nil)
	if err != nil || !outcome.OK() {
		if err != nil {
			p.deps.Logger.Debug("emailrep unreachable", zap.Error(err))
		}
		return
	}

	if len(rep.Details.Profiles) > 0 {
		f := model.New(model.TypeAccount, model.SeverityMedium,
			fmt.Sprintf("Linked Profiles: %d", len(rep.Details.Profiles)))
		f.Description = "Profiles associated with this address: " + strings.Join(rep.Details.Profiles, ", ")
		f.Source = "EmailRep"
		f.Data = map[string]any{"profiles": rep.Details.Profiles}
		f.ParentID = parentID
		f.LinkLabel = "linked to"
		emit(f)
	}
	if rep.Details.CredentialsLeaked {
		f := model.New(model.TypePassword, model.SeverityCritical, "Credentials Leaked")
		f.Description = "Reputation data indicates leaked credentials for this address"
		f.Source = "EmailRep"
		f.Data = map[string]any{
			"credentials_leaked": true,
			"last_seen":          rep.Details.LastSeen,
			"remediation":        "Rotate this password everywhere it was reused",
		}
		f.ParentID = parentID
		f.LinkLabel = "credentials leaked"
		emit(f)
	} else if rep.Details.DataBreach {
		f := model.New(model.TypeBreach, model.SeverityHigh, "Present in Breach Data")
		f.Description = "Reputation data indicates presence in at least one breach"
		f.Source = "EmailRep"
		f.ParentID = parentID
		f.LinkLabel = "found in"
		emit(f)
	}
	if rep.Suspicious {
		f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Flagged Suspicious")
		f.Description = fmt.Sprintf("Reputation %q across %d references", rep.Reputation, rep.References)
		f.Source = "EmailRep"
		f.Data = map[string]any{"reputation": rep.Reputation, "references": rep.References}
		f.ParentID = parentID
		f.LinkLabel = "reputation"
		emit(f)
	}
}

func (p *ReputationProbe) checkDisposable(ctx context.Context, email, parentID string, emit EmitFunc) {
	var out struct {
		Disposable bool   `json:"disposable"`
		Domain     string `json:"domain"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://disify.com/api/email/"+url.PathEscape(email), &out, nil)
	if err != nil || !outcome.OK() || !out.Disposable {
		return
	}
	f := model.New(model.TypePersonalInfo, model.SeverityLow, "Disposable Address")
	f.Description = "Domain belongs to a throwaway email provider"
	f.Source = "Disify"
	f.Data = map[string]any{"domain": out.Domain, "disposable": true}
	f.ParentID = parentID
	f.LinkLabel = "classified as"
	emit(f)
}

// inferName reads a probable real name out of a first.last local part.
func (p *ReputationProbe) inferName(email, parentID string, emit EmitFunc) {
	local := email[:strings.LastIndex(email, "@")]
	m := firstLastRe.FindStringSubmatch(local)
	if m == nil || len(m[1]) < 2 || len(m[2]) < 2 {
		return
	}
	name := titleCase(m[1]) + " " + titleCase(m[2])
	f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Probable Name: "+name)
	f.Description = "Derived from the address format (first.last)"
	f.Source = "Pattern Analysis"
	f.Data = map[string]any{"name": name, "confidence": "medium", "discovery_method": "email_pattern"}
	f.ParentID = parentID
	f.LinkLabel = "probably named"
	emit(f)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
