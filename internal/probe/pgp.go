package probe

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// PGPProbe queries public keyservers. A published key confirms the address
// is active, and its user IDs often carry the owner's real name.
type PGPProbe struct {
	deps Deps
}

func NewPGPProbe(deps Deps) *PGPProbe { return &PGPProbe{deps: deps} }

func (p *PGPProbe) Name() string           { return "PGP Keyserver Lookup" }
func (p *PGPProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

// uid lines in machine-readable keyserver output: "uid:Name <email>:ts::"
var keyserverUIDRe = regexp.MustCompile(`(?m)^uid:([^<:]+?)\s*<`)

func (p *PGPProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	var servers []string
	outcome, _, err := p.deps.Client.GetBody(ctx,
		"https://keys.openpgp.org/vks/v1/by-email/"+url.PathEscape(email), nil)
	if err != nil {
		p.deps.Logger.Debug("openpgp keyserver unreachable", zap.Error(err))
	} else if outcome.OK() {
		servers = append(servers, "keys.openpgp.org")
	}

	var names []string
	outcome, body, err := p.deps.Client.GetBody(ctx,
		"https://keyserver.ubuntu.com/pks/lookup?op=index&options=mr&search="+url.QueryEscape(email), nil)
	if err == nil && outcome.OK() {
		servers = append(servers, "keyserver.ubuntu.com")
		seen := map[string]bool{}
		for _, m := range keyserverUIDRe.FindAllStringSubmatch(string(body), -1) {
			name := strings.TrimSpace(m[1])
			if name == "" || seen[strings.ToLower(name)] {
				continue
			}
			seen[strings.ToLower(name)] = true
			names = append(names, name)
		}
	}

	if len(servers) == 0 {
		return nil
	}

	f := model.New(model.TypePersonalInfo, model.SeverityLow, "PGP Key Published")
	f.Description = "Public key for this address on " + strings.Join(servers, ", ")
	f.Source = "PGP Keyservers"
	f.Data = map[string]any{"keyservers": servers}
	f.ParentID = parentID
	f.LinkLabel = "publishes key"
	emit(f)

	for _, name := range names[:min(len(names), 3)] {
		n := model.New(model.TypePersonalInfo, model.SeverityHigh, "Name: "+name)
		n.Description = "User ID on the published PGP key"
		n.Source = "PGP Keyservers"
		n.Data = map[string]any{"name": name, "source": "pgp_uid"}
		n.ParentID = f.ID
		n.LinkLabel = "named"
		emit(n)
	}
	return nil
}
