package pollclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPollInFlight = errors.New("pollclient: poll already in flight")
	ErrNotRunning   = errors.New("pollclient: poller is not running")
)

const (
	DefaultInterval         = 30 * time.Second
	DefaultMaxQuietFailures = 5
	DefaultMaxBackoff       = 5 * time.Minute
	DefaultLimit            = 20
)

// Generic kick copy, used when the kick notification arrives without its
// own title or body. Matches what the server writes.
const (
	genericKickTitle = "Signed out"
	genericKickBody  = "Your session was ended by an administrator."
)

type PollerConfig struct {
	// Interval is the normal poll cadence.
	Interval time.Duration
	// MaxQuietFailures is how many consecutive failures keep the normal
	// cadence before backoff starts.
	MaxQuietFailures int
	// MaxBackoff caps the doubling backoff interval.
	MaxBackoff time.Duration
	// Limit is the per-poll notification page size.
	Limit int
}

func (c *PollerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxQuietFailures <= 0 {
		c.MaxQuietFailures = DefaultMaxQuietFailures
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
}

// nextDelay keeps the normal cadence through the early failures, then
// doubles per additional failure up to the cap. With the defaults the
// curve is 30s,30s,30s,30s,60s,120s,240s,5m,5m,...
func nextDelay(cfg PollerConfig, failures int) time.Duration {
	if failures < cfg.MaxQuietFailures {
		return cfg.Interval
	}
	d := cfg.Interval
	for i := cfg.MaxQuietFailures - 1; i < failures; i++ {
		d *= 2
		if d >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	return d
}

// PollerState is the whole mutable state of one poller, owned by its run
// goroutine and copied out under lock for observers.
type PollerState struct {
	Cursor              *time.Time
	ConsecutiveFailures int
	Unread              int
	Running             bool
	Kicked              bool
}

// PollAPI is the slice of the service API the poller needs.
type PollAPI interface {
	Poll(ctx context.Context, q PollQuery) (*PollResult, error)
	MarkRead(ctx context.Context, ids []uuid.UUID) (int, error)
}

var _ PollAPI = (*Client)(nil)

// Hooks connect the poller to the host application. OnKick blocks until
// the user has seen the alert; TerminateSession performs the local logout.
type Hooks struct {
	OnNotifications  func(batch []Notification, unread int)
	OnKick           func(title, body string)
	TerminateSession func(ctx context.Context)
}

// Poller drives the poll loop for one authenticated session: normal
// cadence, failure backoff, kick detection and teardown.
type Poller struct {
	api   PollAPI
	cfg   PollerConfig
	hooks Hooks
	log   *slog.Logger

	mu       sync.Mutex
	state    PollerState
	inFlight bool
	gen      int
	cancel   context.CancelFunc
	done     chan struct{}

	wake chan struct{}
	now  func() time.Time
}

func NewPoller(api PollAPI, cfg PollerConfig, hooks Hooks, log *slog.Logger) *Poller {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		api:   api,
		cfg:   cfg,
		hooks: hooks,
		log:   log,
		wake:  make(chan struct{}, 1),
		now:   time.Now,
	}
}

// Start launches the poll loop. The first poll fires immediately and
// omits the cursor so the full unread backlog is fetched. Starting an
// already-running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = PollerState{Running: true}
	done := p.done

	go func() {
		defer close(done)
		defer cancel()
		p.run(runCtx, gen)
	}()
}

// Stop tears the loop down and waits for it to exit. A response already
// in flight is discarded, never applied. Safe to call from hooks.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.state.Running {
		p.mu.Unlock()
		return
	}
	p.state.Running = false
	p.gen++
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Poll requests an immediate out-of-band poll, e.g. on app foreground.
// It never starts an overlapping call: if one is already in flight or
// queued, ErrPollInFlight is returned and the caller can rely on the
// pending poll instead.
func (p *Poller) Poll() error {
	p.mu.Lock()
	running, busy := p.state.Running, p.inFlight
	p.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	if busy {
		return ErrPollInFlight
	}
	select {
	case p.wake <- struct{}{}:
		return nil
	default:
		return ErrPollInFlight
	}
}

// MarkAsRead acknowledges notifications and decrements the local unread
// counter by the count the server actually marked, never below zero.
func (p *Poller) MarkAsRead(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	marked, err := p.api.MarkRead(ctx, ids)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.state.Unread -= marked
	if p.state.Unread < 0 {
		p.state.Unread = 0
	}
	p.mu.Unlock()
	return marked, nil
}

// State returns a copy of the poller's current state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	if st.Cursor != nil {
		t := *st.Cursor
		st.Cursor = &t
	}
	return st
}

func (p *Poller) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Unread
}

func (p *Poller) run(ctx context.Context, gen int) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if halt := p.pollOnce(ctx, gen); halt {
			return
		}

		p.mu.Lock()
		delay := nextDelay(p.cfg, p.state.ConsecutiveFailures)
		p.mu.Unlock()
		timer.Reset(delay)
	}
}

// pollOnce performs one poll and applies the outcome. It reports true
// when the loop must halt (teardown or kick).
func (p *Poller) pollOnce(ctx context.Context, gen int) bool {
	p.mu.Lock()
	if p.gen != gen || !p.state.Running {
		p.mu.Unlock()
		return true
	}
	p.inFlight = true
	q := PollQuery{UnreadOnly: true, Limit: p.cfg.Limit, Since: p.state.Cursor}
	p.mu.Unlock()

	requestedAt := p.now().UTC()
	res, err := p.api.Poll(ctx, q)

	p.mu.Lock()
	p.inFlight = false
	if p.gen != gen || !p.state.Running {
		// Torn down while the request was in flight: discard the
		// response without touching any state.
		p.mu.Unlock()
		return true
	}

	if err != nil {
		p.state.ConsecutiveFailures++
		n := p.state.ConsecutiveFailures
		p.mu.Unlock()
		p.log.Warn("poll failed", "consecutive_failures", n, "error", err)
		return false
	}

	// The cursor moves to our own clock at request time, not to the
	// server's newest notification timestamp. The overlap this re-covers
	// is cheaper than a gap under client/server clock skew.
	cursor := requestedAt
	p.state.Cursor = &cursor
	p.state.ConsecutiveFailures = 0

	if res.HasKick {
		kick := findKick(res.Notifications)
		p.state.Kicked = true
		p.state.Running = false
		p.gen++
		p.mu.Unlock()
		p.handleKick(ctx, kick)
		return true
	}

	p.state.Unread = res.UnreadCount
	batch := res.Notifications
	unread := res.UnreadCount
	p.mu.Unlock()

	if len(batch) > 0 && p.hooks.OnNotifications != nil {
		p.hooks.OnNotifications(batch, unread)
	}
	return false
}

// handleKick runs the forced-logout sequence: blocking alert, best-effort
// acknowledgement so the kick cannot re-trigger, then local termination.
func (p *Poller) handleKick(ctx context.Context, kick *Notification) {
	title, body := genericKickTitle, genericKickBody
	if kick != nil {
		if kick.Title != "" {
			title = kick.Title
		}
		if kick.Body != "" {
			body = kick.Body
		}
	}

	p.log.Info("session kick received", "title", title)
	if p.hooks.OnKick != nil {
		p.hooks.OnKick(title, body)
	}
	if kick != nil {
		if _, err := p.api.MarkRead(ctx, []uuid.UUID{kick.ID}); err != nil {
			p.log.Warn("kick acknowledgement failed", "error", err)
		}
	}
	if p.hooks.TerminateSession != nil {
		p.hooks.TerminateSession(ctx)
	}
}

func findKick(batch []Notification) *Notification {
	for i := range batch {
		if batch[i].IsKick() && batch[i].ReadAt == nil {
			return &batch[i]
		}
	}
	for i := range batch {
		if batch[i].IsKick() {
			return &batch[i]
		}
	}
	return nil
}
