// Package probe holds the OSINT probes a scan executes. Each probe takes a
// typed seed, queries one public source, and emits findings through a
// callback; network failures produce zero findings rather than errors.
package probe

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// ErrSeedKind is returned when a probe is handed a seed kind it does not
// accept. It signals an orchestration bug, not a scan failure.
var ErrSeedKind = errors.New("probe: seed kind not accepted")

// SeedKind discriminates the Seed sum type.
type SeedKind int

const (
	SeedEmail SeedKind = iota + 1
	SeedUsername
	SeedPlatformUser // a username known to exist on a specific platform
	SeedURL
	SeedProfile // aggregate snapshot for correlation probes
)

// AccountRef is an account discovered earlier in the scan.
type AccountRef struct {
	Platform string
	Username string
	URL      string
}

// LocationClue pairs a raw location string with the source that produced
// it and how sure that source was, so correlation can weight both.
// Confidence <= 0 is treated as the 0.5 default.
type LocationClue struct {
	Value      string
	Source     string
	Confidence float64
}

// Profile is the aggregate state snapshot handed to correlation probes.
type Profile struct {
	Email     string
	Usernames []string
	Bios      []string
	Locations []LocationClue
	Accounts  []AccountRef
}

// Seed is the typed input of a probe run. Exactly the fields implied by
// Kind are populated; probes must not parse identity out of free text.
type Seed struct {
	Kind     SeedKind
	Email    string
	Username string
	Platform string
	URL      string
	Profile  Profile
}

func EmailSeed(email string) Seed   { return Seed{Kind: SeedEmail, Email: email} }
func UsernameSeed(name string) Seed { return Seed{Kind: SeedUsername, Username: name} }
func URLSeed(u string) Seed         { return Seed{Kind: SeedURL, URL: u} }
func ProfileSeed(p Profile) Seed    { return Seed{Kind: SeedProfile, Profile: p} }
func PlatformUserSeed(platform, name string) Seed {
	return Seed{Kind: SeedPlatformUser, Platform: platform, Username: name}
}

// EmitFunc delivers one finding to the orchestrator. Implementations may
// block to exert back-pressure; they never drop.
type EmitFunc func(model.Finding)

// Probe is one OSINT source. Run emits zero or more findings parented on
// parentID and returns an error only for contract misuse; upstream
// failures are absorbed (logged by the probe, nothing emitted).
type Probe interface {
	Name() string
	Accepts(seed Seed) bool
	Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error
}

// Deps are the collaborators injected into every probe at construction.
// GitHubToken gates the authenticated GitHub calls; probes degrade to
// their unauthenticated subset when it is empty. Tokens come from
// configuration only, never from source.
type Deps struct {
	Client      *client.Client
	Logger      *zap.Logger
	GitHubToken string
}
