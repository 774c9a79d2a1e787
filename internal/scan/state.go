package scan

import (
	"strings"
	"sync"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

// socialDivePlatforms are the platforms the deep-dive probe understands.
var socialDivePlatforms = map[string]bool{"reddit": true, "twitter": true, "github": true}

// state accumulates cross-hop scan knowledge from emitted findings.
// Probe goroutines write through emit while hop drivers read snapshots,
// so all access is mutex-guarded.
type state struct {
	mu sync.Mutex

	findings []model.Finding

	usernames      []string
	usernameParent map[string]string // username -> finding that produced it
	usernameSeen   map[string]bool

	urls      []string
	urlParent map[string]string
	urlSeen   map[string]bool

	bios      []string
	locations []probe.LocationClue
	accounts  []probe.AccountRef
	acctSeen  map[string]bool

	stats Stats
}

func newState() *state {
	return &state{
		usernameParent: map[string]string{},
		usernameSeen:   map[string]bool{},
		urlParent:      map[string]string{},
		urlSeen:        map[string]bool{},
		acctSeen:       map[string]bool{},
	}
}

// observe folds one finding into the accumulated state, extracting
// usernames, URLs, bios, location clues and account references from its
// data map.
func (s *state) observe(f model.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findings = append(s.findings, f)

	switch f.Type {
	case model.TypeAccount, model.TypeSocial:
		s.stats.Accounts++
	case model.TypeBreach:
		s.stats.Breaches++
	case model.TypePersonalInfo, model.TypeLocation:
		s.stats.PersonalInfo++
	}
	switch f.Severity {
	case model.SeverityCritical:
		s.stats.Critical++
	case model.SeverityHigh:
		s.stats.High++
	}

	if f.SourceURL != "" {
		s.addURL(f.SourceURL, f.ID)
	}

	if f.Data == nil {
		return
	}

	if name, ok := f.Data["username"].(string); ok {
		s.addUsername(name, f.ID)
	}
	for _, v := range anySlice(f.Data["usernames"]) {
		if name, ok := v.(string); ok {
			s.addUsername(name, f.ID)
		}
	}

	for _, key := range []string{"url", "website"} {
		if u, ok := f.Data[key].(string); ok {
			s.addURL(u, f.ID)
		}
	}
	for _, v := range anySlice(f.Data["urls"]) {
		if u, ok := v.(string); ok {
			s.addURL(u, f.ID)
		}
	}

	if bio, ok := f.Data["bio"].(string); ok && bio != "" {
		s.bios = append(s.bios, bio)
	}

	if loc, ok := f.Data["location"].(string); ok && loc != "" {
		source, _ := f.Data["location_source"].(string)
		if source == "" {
			source, _ = f.Data["source"].(string)
		}
		conf := 0.5
		if v, ok := f.Data["confidence"].(float64); ok && v > 0 {
			conf = v
		}
		s.locations = append(s.locations, probe.LocationClue{Value: loc, Source: source, Confidence: conf})
	}

	if platform, ok := f.Data["platform"].(string); ok {
		if name, ok := f.Data["username"].(string); ok && platform != "" && name != "" {
			key := strings.ToLower(platform) + ":" + strings.ToLower(name)
			if !s.acctSeen[key] {
				s.acctSeen[key] = true
				u, _ := f.Data["url"].(string)
				s.accounts = append(s.accounts, probe.AccountRef{
					Platform: strings.ToLower(platform), Username: name, URL: u,
				})
			}
		}
	}
}

func (s *state) addUsername(name, findingID string) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)
	if name == "" || s.usernameSeen[key] {
		return
	}
	s.usernameSeen[key] = true
	s.usernames = append(s.usernames, name)
	s.usernameParent[key] = findingID
	s.stats.UsernamesDiscovered++
}

func (s *state) addURL(u, findingID string) {
	u = strings.TrimSpace(u)
	if u == "" || !strings.HasPrefix(u, "http") || s.urlSeen[u] {
		return
	}
	s.urlSeen[u] = true
	s.urls = append(s.urls, u)
	s.urlParent[u] = findingID
	s.stats.URLsFound++
}

// seedUsernames returns up to limit discovered usernames with the finding
// each one came from.
func (s *state) seedUsernames(limit int) []seedRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]seedRef, 0, limit)
	for _, name := range s.usernames {
		if len(out) == limit {
			break
		}
		out = append(out, seedRef{value: name, parentID: s.usernameParent[strings.ToLower(name)]})
	}
	return out
}

func (s *state) seedURLs(limit int) []seedRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]seedRef, 0, limit)
	for _, u := range s.urls {
		if len(out) == limit {
			break
		}
		out = append(out, seedRef{value: u, parentID: s.urlParent[u]})
	}
	return out
}

// seedAccounts returns confirmed accounts the deep-dive probe can handle.
func (s *state) seedAccounts(limit int) []accountSeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accountSeed
	for _, acct := range s.accounts {
		if len(out) == limit {
			break
		}
		if !socialDivePlatforms[acct.Platform] {
			continue
		}
		key := acct.Platform + ":" + strings.ToLower(acct.Username)
		out = append(out, accountSeed{
			ref:      acct,
			parentID: s.accountParentLocked(key),
		})
	}
	return out
}

// accountParentLocked finds the finding that introduced an account; falls
// back to empty (root) when the producing finding is unknown.
func (s *state) accountParentLocked(key string) string {
	for _, f := range s.findings {
		if f.Data == nil {
			continue
		}
		platform, _ := f.Data["platform"].(string)
		name, _ := f.Data["username"].(string)
		if strings.ToLower(platform)+":"+strings.ToLower(name) == key {
			return f.ID
		}
	}
	return ""
}

// snapshot builds the aggregate profile seed for correlation probes.
func (s *state) snapshot() probe.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return probe.Profile{
		Usernames: append([]string(nil), s.usernames...),
		Bios:      append([]string(nil), s.bios...),
		Locations: append([]probe.LocationClue(nil), s.locations...),
		Accounts:  append([]probe.AccountRef(nil), s.accounts...),
	}
}

func (s *state) snapshotFindings() []model.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Finding(nil), s.findings...)
}

func (s *state) snapshotStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

type seedRef struct {
	value    string
	parentID string
}

type accountSeed struct {
	ref      probe.AccountRef
	parentID string
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	if s != nil {
		return s
	}
	if strs, ok := v.([]string); ok {
		out := make([]any, len(strs))
		for i, str := range strs {
			out[i] = str
		}
		return out
	}
	return nil
}
