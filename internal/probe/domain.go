package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// DomainProbe flags custom email domains. Unlike a freemail address, a
// personal domain ties the address to RDAP registration data and to every
// other identity hosted on the same domain.
type DomainProbe struct {
	deps Deps
}

func NewDomainProbe(deps Deps) *DomainProbe { return &DomainProbe{deps: deps} }

func (p *DomainProbe) Name() string           { return "Domain Lookup" }
func (p *DomainProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

var freeProviders = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true,
	"hotmail.com": true, "outlook.com": true, "live.com": true,
	"msn.com": true, "icloud.com": true, "me.com": true, "mac.com": true,
	"proton.me": true, "protonmail.com": true, "pm.me": true,
	"aol.com": true, "gmx.com": true, "gmx.net": true, "mail.com": true,
	"yandex.com": true, "yandex.ru": true, "zoho.com": true,
	"fastmail.com": true, "tutanota.com": true, "tuta.io": true,
	"hey.com": true, "duck.com": true, "mailbox.org": true,
}

// IsFreeProvider reports whether the domain belongs to a known freemail
// service.
func IsFreeProvider(domain string) bool {
	return freeProviders[strings.ToLower(domain)]
}

type rdapDomain struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles []string `json:"roles"`
	} `json:"entities"`
	Status []string `json:"status"`
}

func (p *DomainProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	domain := email[strings.LastIndex(email, "@")+1:]
	if IsFreeProvider(domain) {
		return nil
	}

	f := model.New(model.TypeDomain, model.SeverityMedium, "Custom Domain: "+domain)
	f.Description = "Address uses a personal or organizational domain, which is directly attributable"
	f.Source = "Domain Analysis"
	f.Data = map[string]any{"domain": domain, "custom_domain": true}
	f.ParentID = parentID
	f.LinkLabel = "hosted on"
	emit(f)

	var rdap rdapDomain
	outcome, err := p.deps.Client.GetJSON(ctx, "https://rdap.org/domain/"+domain, &rdap, nil)
	if err != nil {
		p.deps.Logger.Debug("rdap unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() {
		return nil
	}

	data := map[string]any{"domain": domain}
	for _, ev := range rdap.Events {
		switch ev.Action {
		case "registration":
			data["registered"] = ev.Date
		case "expiration":
			data["expires"] = ev.Date
		}
	}
	if len(rdap.Status) > 0 {
		data["status"] = rdap.Status
	}
	reg := model.New(model.TypeDomain, model.SeverityLow, "Domain Registration Found")
	reg.Description = "Public RDAP registration record for the email domain"
	reg.Source = "RDAP"
	reg.SourceURL = "https://rdap.org/domain/" + domain
	reg.Data = data
	reg.ParentID = f.ID
	reg.LinkLabel = "registered"
	emit(reg)
	return nil
}
