package probe

import (
	"context"
	"regexp"
	"strings"

	"github.com/trace-osint/trace/internal/model"
)

// UsernameDeriveProbe generates plausible usernames from the local part of
// the address. Purely computational; no network calls. The candidates feed
// the hop-2 platform sweep.
type UsernameDeriveProbe struct {
	deps Deps
}

func NewUsernameDeriveProbe(deps Deps) *UsernameDeriveProbe {
	return &UsernameDeriveProbe{deps: deps}
}

func (p *UsernameDeriveProbe) Name() string           { return "Username Extractor" }
func (p *UsernameDeriveProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

var usernameShapeRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// DeriveUsernames returns deduped username candidates for an email's
// local part, most-likely first. Candidates that do not look like a
// handle (too short, odd characters) are dropped.
func DeriveUsernames(email string) []string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return nil
	}
	local := strings.ToLower(email[:at])

	var candidates []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if usernameShapeRe.MatchString(s) {
			candidates = append(candidates, s)
		}
	}

	add(local)
	if strings.ContainsAny(local, "._-") {
		norm := strings.NewReplacer("-", ".", "_", ".").Replace(local)
		parts := strings.FieldsFunc(norm, func(r rune) bool { return r == '.' })
		add(strings.Join(parts, ""))
		add(strings.Join(parts, "_"))
		if len(parts) >= 2 {
			add(parts[0][:1] + parts[len(parts)-1]) // first initial + last
			add(parts[0])
			add(parts[len(parts)-1])
		}
	}
	if trimmed := strings.TrimRight(local, "0123456789"); trimmed != local {
		add(trimmed)
	}

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (p *UsernameDeriveProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	candidates := DeriveUsernames(seed.Email)
	if len(candidates) == 0 {
		return nil
	}

	f := model.New(model.TypeUsername, model.SeverityLow, "Potential Usernames Derived")
	f.Description = "Handle candidates derived from the address format"
	f.Source = "Pattern Analysis"
	f.Data = map[string]any{
		"usernames":        candidates,
		"discovery_method": "local_part_derivation",
		"confidence":       "low",
	}
	f.ParentID = parentID
	f.LinkLabel = "may use"
	emit(f)
	return nil
}
