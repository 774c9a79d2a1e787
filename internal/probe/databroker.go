package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/trace-osint/trace/internal/model"
)

// DataBrokerProbe reports people-search brokers that almost certainly
// index the subject, with opt-out links. Deliberately offline: querying
// brokers would hand them a fresh signal that the address is live.
type DataBrokerProbe struct {
	deps Deps
}

func NewDataBrokerProbe(deps Deps) *DataBrokerProbe { return &DataBrokerProbe{deps: deps} }

func (p *DataBrokerProbe) Name() string           { return "Data Broker Check" }
func (p *DataBrokerProbe) Accepts(seed Seed) bool { return seed.Kind == SeedProfile }

// searchTmpl carries an {email} placeholder the probe fills with the
// URL-encoded address, producing a personalized lookup link without ever
// contacting the broker.
type dataBroker struct {
	name       string
	searchTmpl string
	optOutURL  string
	dataTypes  []string
	severity   model.Severity
}

var dataBrokers = []dataBroker{
	{"Spokeo", "https://www.spokeo.com/search?q={email}", "https://www.spokeo.com/optout",
		[]string{"name", "address", "phone", "relatives"}, model.SeverityHigh},
	{"BeenVerified", "https://www.beenverified.com/f/search?email={email}", "https://www.beenverified.com/app/optout/search",
		[]string{"name", "address", "phone", "criminal records"}, model.SeverityHigh},
	{"Whitepages", "https://www.whitepages.com/search?q={email}", "https://www.whitepages.com/suppression-requests",
		[]string{"name", "address", "phone", "relatives"}, model.SeverityHigh},
	{"Intelius", "https://www.intelius.com/search?q={email}", "https://www.intelius.com/opt-out",
		[]string{"name", "address", "phone", "employment"}, model.SeverityHigh},
	{"TruePeopleSearch", "https://www.truepeoplesearch.com/results?email={email}", "https://www.truepeoplesearch.com/removal",
		[]string{"name", "address", "phone", "relatives"}, model.SeverityHigh},
	{"FastPeopleSearch", "https://www.fastpeoplesearch.com/search?q={email}", "https://www.fastpeoplesearch.com/removal",
		[]string{"name", "address", "phone"}, model.SeverityHigh},
	{"PeopleFinders", "https://www.peoplefinders.com/search?q={email}", "https://www.peoplefinders.com/opt-out",
		[]string{"name", "address", "phone"}, model.SeverityMedium},
	{"Radaris", "https://radaris.com/search?email={email}", "https://radaris.com/control/privacy",
		[]string{"name", "address", "employment"}, model.SeverityMedium},
	{"MyLife", "https://www.mylife.com/search?q={email}", "https://www.mylife.com/ccpa/index.pubview",
		[]string{"name", "reputation score", "address"}, model.SeverityMedium},
	{"USSearch", "https://www.ussearch.com/search?q={email}", "https://www.ussearch.com/opt-out",
		[]string{"name", "address", "phone"}, model.SeverityMedium},
	{"PeekYou", "https://www.peekyou.com/search?q={email}", "https://www.peekyou.com/about/contact/optout",
		[]string{"usernames", "social profiles"}, model.SeverityMedium},
	{"That'sThem", "https://thatsthem.com/email/{email}", "https://thatsthem.com/optout",
		[]string{"email", "address", "phone"}, model.SeverityMedium},
}

func (b dataBroker) searchFor(encodedEmail string) string {
	if encodedEmail == "" {
		return ""
	}
	return strings.ReplaceAll(b.searchTmpl, "{email}", encodedEmail)
}

func (p *DataBrokerProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	encoded := url.QueryEscape(strings.ToLower(strings.TrimSpace(seed.Profile.Email)))

	warning := model.New(model.TypeDataBroker, model.SeverityHigh, "Data Broker Exposure Likely")
	warning.Description = fmt.Sprintf(
		"%d people-search brokers routinely index addresses like this one", len(dataBrokers))
	warning.Source = "Data Broker Catalog"
	warning.Data = map[string]any{
		"broker_count": len(dataBrokers),
		"remediation":  "Work through the opt-out checklist below; re-check quarterly",
	}
	warning.ParentID = parentID
	warning.LinkLabel = "likely indexed by"
	emit(warning)

	var optOuts []map[string]any
	mediumCount := 0
	for _, b := range dataBrokers {
		optOuts = append(optOuts, map[string]any{
			"broker":  b.name,
			"opt_out": b.optOutURL,
		})
		if b.severity != model.SeverityHigh {
			mediumCount++
			continue
		}
		searchURL := b.searchFor(encoded)
		f := model.New(model.TypeDataBroker, model.SeverityHigh, "Broker: "+b.name)
		f.Description = b.name + " aggregates " + joinAnd(b.dataTypes)
		f.Source = "Data Broker Catalog"
		f.SourceURL = searchURL
		f.Data = map[string]any{
			"broker":     b.name,
			"data_types": b.dataTypes,
			"opt_out":    b.optOutURL,
		}
		if searchURL != "" {
			f.Data["search_url"] = searchURL
		}
		f.ParentID = warning.ID
		f.LinkLabel = "aggregated by"
		emit(f)
	}

	if mediumCount > 0 {
		f := model.New(model.TypeDataBroker, model.SeverityMedium,
			fmt.Sprintf("%d Additional Brokers", mediumCount))
		f.Description = "Lower-impact people-search sites that also warrant opt-outs"
		f.Source = "Data Broker Catalog"
		f.Data = map[string]any{"broker_count": mediumCount}
		f.ParentID = warning.ID
		f.LinkLabel = "also indexed by"
		emit(f)
	}

	checklist := model.New(model.TypeDataBroker, model.SeverityLow, "Opt-Out Checklist")
	checklist.Description = "Removal request links for every cataloged broker"
	checklist.Source = "Data Broker Catalog"
	checklist.Data = map[string]any{"opt_outs": optOuts}
	checklist.ParentID = warning.ID
	checklist.LinkLabel = "remediate via"
	emit(checklist)
	return nil
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	last := items[len(items)-1]
	rest := items[:len(items)-1]
	out := ""
	for i, it := range rest {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out + " and " + last
}
