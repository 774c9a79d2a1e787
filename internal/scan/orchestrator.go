package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

// ErrInvalidSeed rejects a scan request whose email cannot be a seed.
var ErrInvalidSeed = errors.New("scan: invalid email seed")

// Options tune one engine instance. Zero values fall back to defaults.
type Options struct {
	ScanDeadline time.Duration // whole-scan budget
	ProbeTimeout time.Duration // per-probe budget
	DrainGrace   time.Duration // wait for in-flight probes after cancel
	Hop1Fanout   int           // concurrent hop-1 probes, capped at 4
	Hop2Fanout   int           // concurrent hop-2 probe runs
	Pacing       time.Duration // delay between probe launches
	MaxUsernames int           // hop-2 username budget
	MaxURLs      int           // hop-2 archive-lookup budget
	Expected     map[int]int   // expected finding count per depth, for progress
}

func (o Options) withDefaults() Options {
	if o.ScanDeadline <= 0 {
		o.ScanDeadline = 90 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 30 * time.Second
	}
	if o.DrainGrace <= 0 {
		o.DrainGrace = 2 * time.Second
	}
	if o.Hop1Fanout <= 0 {
		o.Hop1Fanout = 1
	}
	if o.Hop1Fanout > 4 {
		o.Hop1Fanout = 4
	}
	if o.Hop2Fanout <= 0 {
		o.Hop2Fanout = 2
	}
	if o.Pacing <= 0 {
		o.Pacing = 400 * time.Millisecond
	}
	if o.MaxUsernames <= 0 {
		o.MaxUsernames = 5
	}
	if o.MaxURLs <= 0 {
		o.MaxURLs = 5
	}
	if o.Expected == nil {
		o.Expected = map[int]int{1: 10, 2: 25, 3: 40}
	}
	return o
}

// Engine runs scans. Safe for concurrent use; each Run is independent.
type Engine struct {
	registry *probe.Registry
	logger   *zap.Logger
	opts     Options
}

// NewEngine builds an engine over a probe registry.
func NewEngine(registry *probe.Registry, logger *zap.Logger, opts Options) *Engine {
	return &Engine{registry: registry, logger: logger, opts: opts.withDefaults()}
}

// Run starts a scan and returns its event stream. The channel is closed
// after the complete (or error) event. Cancelling ctx aborts the scan.
func (e *Engine) Run(ctx context.Context, email string, depth int) (<-chan Event, error) {
	if !model.ValidEmail(email) {
		return nil, ErrInvalidSeed
	}
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	events := make(chan Event, 16)
	go e.run(ctx, email, depth, events)
	return events, nil
}

func (e *Engine) run(ctx context.Context, email string, depth int, events chan<- Event) {
	defer close(events)

	scanID := uuid.NewString()
	masked := model.MaskEmail(email)
	logger := e.logger.With(zap.String("scan_id", scanID), zap.String("email", masked))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scan panicked", zap.Any("panic", r))
			e.send(ctx, events, Event{Type: EventError, Message: "internal scan failure"})
		}
	}()

	scanCtx, cancel := context.WithTimeout(ctx, e.opts.ScanDeadline)
	defer cancel()

	logger.Info("scan started", zap.Int("depth", depth))
	e.send(ctx, events, Event{Type: EventStart, Depth: depth})

	// Findings are folded into state synchronously on emit so the next hop
	// always sees everything the previous one produced; the channel only
	// feeds the stream.
	st := newState()
	findings := make(chan model.Finding, 32)
	emit := func(f model.Finding) {
		st.observe(f)
		select {
		case findings <- f:
		case <-scanCtx.Done():
		}
	}

	root := model.New(model.TypeRoot, model.SeverityLow, "Scan Target: "+masked)
	root.Description = "Starting point of the scan graph"
	root.Source = "Scanner"
	root.Data = map[string]any{"email_masked": masked, "scan_id": scanID, "depth": depth}

	// Audit lines go to the engine log and, masked, to the stream. The
	// producer only sends them while the collector is draining findings,
	// so they always precede channel close.
	logf := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		logger.Info(msg)
		e.send(ctx, events, Event{Type: EventLog, Message: msg})
	}

	// Producer: drives the hops and closes the finding channel when every
	// probe has returned or been abandoned.
	go func() {
		defer close(findings)
		emit(root)
		e.hop1(scanCtx, email, root.ID, emit, logf)
		if depth >= 2 {
			e.hop2(scanCtx, st, depth, emit, logf)
		}
		if depth >= 3 {
			e.hop3(scanCtx, st, email, root.ID, emit, logf)
		}
	}()

	// Collector: forwards findings to the stream and derives progress. A
	// slow consumer back-pressures the probes here.
	count := 0
	lastProgress := 0
	expected := e.opts.Expected[depth]
	if expected <= 0 {
		expected = 10
	}
	for f := range findings {
		count++
		elapsed := round1(time.Since(started).Seconds())
		e.send(ctx, events, Event{Type: EventFinding, Finding: &f})

		progress := count * 100 / expected
		if progress > 95 {
			progress = 95
		}
		if progress > lastProgress {
			lastProgress = progress
		}
		e.send(ctx, events, Event{
			Type:         EventProgress,
			Progress:     lastProgress,
			FindingCount: count,
			Elapsed:      elapsed,
		})
	}

	timedOut := scanCtx.Err() != nil && ctx.Err() == nil
	collected := st.snapshotFindings()
	results := &Results{
		ScanID:   scanID,
		Findings: collected,
		Risk:     Score(collected),
		Stats:    st.snapshotStats(),
		Elapsed:  round1(time.Since(started).Seconds()),
		TimedOut: timedOut,
	}
	logger.Info("scan finished",
		zap.Int("findings", count),
		zap.Int("risk_score", results.Risk.Score),
		zap.Bool("timed_out", timedOut),
		zap.Duration("elapsed", time.Since(started)))
	e.send(ctx, events, Event{Type: EventComplete, Results: results})
}

// ── hop drivers ─────────────────────────────────────────────────────────

func (e *Engine) hop1(ctx context.Context, email, rootID string, emit probe.EmitFunc, logf func(string, ...any)) {
	probes := e.registry.Hop1()
	logf("Hop 1: running %d probes against the address", len(probes))

	seed := probe.EmailSeed(email)
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Hop1Fanout)
	for i, p := range probes {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			e.pace(ctx)
		}
		g.Go(func() error {
			e.runProbe(ctx, p, seed, 1, rootID, emit)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) hop2(ctx context.Context, st *state, depth int, emit probe.EmitFunc, logf func(string, ...any)) {
	usernames := st.seedUsernames(e.opts.MaxUsernames)
	accounts := st.seedAccounts(4)
	urls := st.seedURLs(e.opts.MaxURLs)
	logf("Hop 2: chasing %d usernames, %d accounts, %d archived URLs",
		len(usernames), len(accounts), len(urls))

	// Username probes fan out; each probe picks the seed kinds it accepts.
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Hop2Fanout)
	for _, ref := range usernames {
		seed := probe.UsernameSeed(ref.value)
		parentID := ref.parentID
		for _, p := range e.registry.Hop2() {
			if !p.Accepts(seed) || ctx.Err() != nil {
				continue
			}
			g.Go(func() error {
				e.runProbe(ctx, p, seed, depth, parentID, emit)
				return nil
			})
			e.pace(ctx)
		}
	}
	_ = g.Wait()

	// Account and URL followups run serially; they are few and cheap.
	for _, acct := range accounts {
		seed := probe.PlatformUserSeed(acct.ref.Platform, acct.ref.Username)
		for _, p := range e.registry.Hop2() {
			if !p.Accepts(seed) || ctx.Err() != nil {
				continue
			}
			e.runProbe(ctx, p, seed, depth, acct.parentID, emit)
			e.pace(ctx)
		}
	}
	for _, ref := range urls {
		seed := probe.URLSeed(ref.value)
		for _, p := range e.registry.Hop2() {
			if !p.Accepts(seed) || ctx.Err() != nil {
				continue
			}
			e.runProbe(ctx, p, seed, depth, ref.parentID, emit)
			e.pace(ctx)
		}
	}
}

// hop3 runs the correlation probes serially: each one reads the full
// accumulated profile, and a fresh snapshot is taken per probe so later
// ones see what earlier ones added.
func (e *Engine) hop3(ctx context.Context, st *state, email, rootID string, emit probe.EmitFunc, logf func(string, ...any)) {
	logf("Hop 3: correlating collected findings")
	for _, p := range e.registry.Hop3() {
		if ctx.Err() != nil {
			break
		}
		snap := st.snapshot()
		snap.Email = email
		e.runProbe(ctx, p, probe.ProfileSeed(snap), 3, rootID, emit)
		e.pace(ctx)
	}
}

// runProbe executes one probe with its own timeout, recovering panics and
// absorbing errors. On scan cancellation the probe gets a short grace to
// flush, then is abandoned; its emits are discarded by the emit wrapper.
func (e *Engine) runProbe(ctx context.Context, p probe.Probe, seed probe.Seed, depth int, parentID string, emit probe.EmitFunc) {
	if !p.Accepts(seed) {
		e.logger.Warn("probe handed wrong seed kind", zap.String("probe", p.Name()))
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("probe panicked",
					zap.String("probe", p.Name()), zap.Any("panic", r))
			}
		}()
		pctx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
		defer cancel()
		started := time.Now()
		if err := p.Run(pctx, seed, depth, parentID, emit); err != nil {
			e.logger.Warn("probe misuse", zap.String("probe", p.Name()), zap.Error(err))
		}
		e.logger.Debug("probe finished",
			zap.String("probe", p.Name()), zap.Duration("elapsed", time.Since(started)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(e.opts.DrainGrace):
			e.logger.Warn("probe abandoned after deadline", zap.String("probe", p.Name()))
		}
	}
}

func (e *Engine) pace(ctx context.Context) {
	select {
	case <-time.After(e.opts.Pacing):
	case <-ctx.Done():
	}
}

func (e *Engine) send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
