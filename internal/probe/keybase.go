package probe

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// KeybaseProbe resolves an email into Keybase identities whose social
// proofs are cryptographically verified, making them the highest-trust
// account links a scan produces.
type KeybaseProbe struct {
	deps Deps
}

func NewKeybaseProbe(deps Deps) *KeybaseProbe { return &KeybaseProbe{deps: deps} }

func (p *KeybaseProbe) Name() string           { return "Keybase Lookup" }
func (p *KeybaseProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

var keybaseProofPlatforms = map[string]string{
	"twitter":          "twitter",
	"github":           "github",
	"reddit":           "reddit",
	"hackernews":       "hackernews",
	"facebook":         "facebook",
	"generic_web_site": "website",
	"dns":              "website",
}

type keybaseLookup struct {
	Them []struct {
		Basics struct {
			Username string `json:"username"`
		} `json:"basics"`
		Profile struct {
			FullName string `json:"full_name"`
			Location string `json:"location"`
			Bio      string `json:"bio"`
		} `json:"profile"`
		ProofsSummary struct {
			All []struct {
				ProofType  string `json:"proof_type"`
				Nametag    string `json:"nametag"`
				State      int    `json:"state"`
				ServiceURL string `json:"service_url"`
			} `json:"all"`
		} `json:"proofs_summary"`
		PublicKeys struct {
			Primary struct {
				KeyFingerprint string `json:"key_fingerprint"`
			} `json:"primary"`
		} `json:"public_keys"`
	} `json:"them"`
}

func (p *KeybaseProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	var out keybaseLookup
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://keybase.io/_/api/1.0/user/lookup.json?fields=basics,profile,proofs_summary,public_keys&email="+url.QueryEscape(email),
		&out, nil)
	if err != nil {
		p.deps.Logger.Debug("keybase unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() {
		return nil
	}

	for _, user := range out.Them {
		username := user.Basics.Username
		if username == "" {
			continue
		}
		acct := model.New(model.TypeAccount, model.SeverityHigh, "Keybase: "+username)
		acct.Description = "Keybase identity registered with this address"
		acct.Source = "Keybase"
		acct.SourceURL = "https://keybase.io/" + username
		acct.Data = map[string]any{
			"username": username,
			"platform": "keybase",
		}
		acct.ParentID = parentID
		acct.LinkLabel = "owns identity"
		emit(acct)

		if name := user.Profile.FullName; name != "" {
			f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Name: "+name)
			f.Description = "Full name on the Keybase profile"
			f.Source = "Keybase"
			f.Data = map[string]any{"name": name, "source": "keybase"}
			f.ParentID = acct.ID
			f.LinkLabel = "named"
			emit(f)
		}
		if loc := user.Profile.Location; loc != "" {
			f := model.New(model.TypeLocation, model.SeverityMedium, "Location: "+loc)
			f.Description = "Location on the Keybase profile"
			f.Source = "Keybase"
			f.Data = map[string]any{"location": loc, "location_source": "keybase"}
			f.ParentID = acct.ID
			f.LinkLabel = "located in"
			emit(f)
		}
		if bio := user.Profile.Bio; bio != "" {
			f := model.New(model.TypePersonalInfo, model.SeverityLow, "Keybase Bio")
			f.Description = trim(bio, 180)
			f.Source = "Keybase"
			f.Data = map[string]any{"bio": bio}
			f.ParentID = acct.ID
			f.LinkLabel = "describes self"
			emit(f)
		}

		for _, proof := range user.ProofsSummary.All {
			if proof.State != 1 {
				continue // only proofs that currently verify
			}
			platform, ok := keybaseProofPlatforms[proof.ProofType]
			if !ok {
				platform = proof.ProofType
			}
			f := model.New(model.TypeAccount, model.SeverityHigh,
				"Verified: "+titleCase(platform)+" @"+proof.Nametag)
			f.Description = "Cryptographically proven account ownership via Keybase"
			f.Source = "Keybase"
			f.SourceURL = proof.ServiceURL
			f.Data = map[string]any{
				"platform":         platform,
				"username":         proof.Nametag,
				"url":              proof.ServiceURL,
				"discovery_method": "keybase_proof",
				"confidence":       "verified",
			}
			f.ParentID = acct.ID
			f.LinkLabel = "proved ownership"
			emit(f)
		}

		if fp := user.PublicKeys.Primary.KeyFingerprint; fp != "" {
			f := model.New(model.TypePersonalInfo, model.SeverityLow, "PGP Key Published")
			f.Description = "Primary public key fingerprint on Keybase"
			f.Source = "Keybase"
			f.Data = map[string]any{"fingerprint": fp}
			f.ParentID = acct.ID
			f.LinkLabel = "publishes key"
			emit(f)
		}
	}
	return nil
}
