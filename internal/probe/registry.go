package probe

// Registry owns the probe set of a scan, grouped by hop. Hop 1 consumes
// the email seed, hop 2 chases usernames and URLs it surfaced, hop 3
// correlates everything collected so far.
type Registry struct {
	hop1 []Probe
	hop2 []Probe
	hop3 []Probe
}

// NewRegistry constructs every probe against the shared collaborators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		hop1: []Probe{
			NewBreachProbe(deps),
			NewEmailIntelProbe(deps),
			NewReputationProbe(deps),
			NewDorkProbe(deps),
			NewPasteProbe(deps),
			NewGravatarProbe(deps),
			NewUsernameDeriveProbe(deps),
			NewGitHubEmailProbe(deps),
			NewKeybaseProbe(deps),
			NewIntelXProbe(deps),
			NewHudsonRockProbe(deps),
			NewDomainProbe(deps),
			NewPGPProbe(deps),
		},
		hop2: []Probe{
			NewPlatformSweepProbe(deps),
			NewGitHubProfileProbe(deps),
			NewGitHubSecretsProbe(deps),
			NewSocialDeepProbe(deps),
			NewWaybackProbe(deps),
		},
		hop3: []Probe{
			NewDataBrokerProbe(deps),
			NewLocationInferenceProbe(deps),
			NewConnectedAccountsProbe(deps),
		},
	}
}

// NewCustomRegistry assembles a registry from explicit probe lists.
func NewCustomRegistry(hop1, hop2, hop3 []Probe) *Registry {
	return &Registry{hop1: hop1, hop2: hop2, hop3: hop3}
}

func (r *Registry) Hop1() []Probe { return r.hop1 }
func (r *Registry) Hop2() []Probe { return r.hop2 }
func (r *Registry) Hop3() []Probe { return r.hop3 }
