package searchclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/services"
	"github.com/yoockh/legalmatch/internal/utils"
)

var (
	ErrSearchTimeout = errors.New("search timed out")
	// ErrSuperseded is returned to a caller whose request was overtaken by a
	// newer Search, Clear or mode change. State was not touched.
	ErrSuperseded = errors.New("search superseded by a newer request")
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultLimit     = 10
	DefaultThreshold = 0.3
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseError     Phase = "error"
	PhaseEmpty     Phase = "empty"
	PhasePopulated Phase = "populated"
)

// State is a snapshot; callers may keep it, the client never mutates it.
type State struct {
	Results   []models.LawyerSearchResult `json:"results"`
	Loading   bool                        `json:"loading"`
	Error     string                      `json:"error,omitempty"`
	LastQuery string                      `json:"last_query"`
	Enabled   bool                        `json:"enabled"`
}

func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Error != "":
		return PhaseError
	case s.LastQuery == "":
		return PhaseIdle
	case len(s.Results) == 0:
		return PhaseEmpty
	default:
		return PhasePopulated
	}
}

type Options struct {
	Timeout   time.Duration
	Limit     int
	Threshold *float64 // nil means DefaultThreshold; 0 keeps every match
	Enabled   bool     // AI search on at start

	Lister   Lister   // optional fallback while AI search is off
	Notifier Notifier // optional
	OnChange func(State)
}

// Client holds the search state of one UI session. Only the most recently
// issued request may change state; earlier responses are discarded.
type Client struct {
	searcher  Searcher
	opts      Options
	threshold float64

	mu      sync.Mutex
	state   State
	typed   string // latest input, kept across mode changes
	seq     uint64
	version uint64
	cancel  context.CancelFunc

	emitMu  sync.Mutex
	emitted uint64
}

func New(searcher Searcher, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	c := &Client{searcher: searcher, opts: opts, threshold: DefaultThreshold}
	if opts.Threshold != nil {
		c.threshold = *opts.Threshold
	}
	c.state.Enabled = opts.Enabled
	c.state.Results = []models.LawyerSearchResult{}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

type fetchFunc func(context.Context) ([]models.LawyerSearchResult, error)

// inflight is one issued request. Only the one whose seq is current may
// write results.
type inflight struct {
	seq    uint64
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	fetch  fetchFunc
}

// Search runs the query semantically, or through the Lister while AI search
// is off. An empty query clears state without any call.
func (c *Client) Search(ctx context.Context, query string, limit int) error {
	req := c.issue(ctx, query, limit)
	if req == nil {
		return nil
	}
	return c.await(req)
}

// SearchAsync issues the request before returning and completes it in the
// background. Calls made in order are ordered even when answers are not.
func (c *Client) SearchAsync(ctx context.Context, query string, limit int) <-chan error {
	done := make(chan error, 1)
	req := c.issue(ctx, query, limit)
	if req == nil {
		done <- nil
		return done
	}
	go func() { done <- c.await(req) }()
	return done
}

// Clear cancels any request in flight and resets results, error and query.
func (c *Client) Clear() {
	c.mu.Lock()
	c.typed = ""
	c.clearLocked()
	st, v := c.changedLocked()
	c.mu.Unlock()
	c.emit(st, v)
}

// SetEnabled toggles AI search. Turning it on re-runs the latest input;
// turning it off drops semantic results.
func (c *Client) SetEnabled(ctx context.Context, enabled bool) error {
	return <-c.SetEnabledAsync(ctx, enabled)
}

func (c *Client) SetEnabledAsync(ctx context.Context, enabled bool) <-chan error {
	c.mu.Lock()
	c.state.Enabled = enabled
	typed := c.typed
	c.clearLocked()
	st, v := c.changedLocked()
	c.mu.Unlock()
	c.emit(st, v)

	if enabled && strings.TrimSpace(typed) != "" {
		return c.SearchAsync(ctx, typed, 0)
	}
	done := make(chan error, 1)
	done <- nil
	return done
}

func (c *Client) issue(ctx context.Context, query string, limit int) *inflight {
	if strings.TrimSpace(query) == "" {
		c.Clear()
		return nil
	}
	if limit <= 0 {
		limit = c.opts.Limit
	}
	q := strings.TrimSpace(query)

	c.mu.Lock()
	c.typed = query

	var fetch fetchFunc
	switch {
	case c.state.Enabled:
		fetch = func(ctx context.Context) ([]models.LawyerSearchResult, error) {
			thr := c.threshold
			resp, err := c.searcher.Search(ctx, services.SearchRequest{Query: q, Limit: &limit, Threshold: &thr})
			if err != nil {
				return nil, err
			}
			return resp.Results, nil
		}
	case c.opts.Lister != nil:
		fetch = func(ctx context.Context) ([]models.LawyerSearchResult, error) {
			return c.opts.Lister.List(ctx, q, limit)
		}
	default:
		c.mu.Unlock()
		return nil
	}

	c.seq++
	if c.cancel != nil {
		c.cancel()
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	c.cancel = cancel
	c.state.Loading = true
	c.state.Error = ""
	c.state.LastQuery = query
	req := &inflight{seq: c.seq, parent: ctx, ctx: reqCtx, cancel: cancel, fetch: fetch}
	st, v := c.changedLocked()
	c.mu.Unlock()

	c.emit(st, v)
	return req
}

func (c *Client) await(req *inflight) error {
	results, err := req.fetch(req.ctx)
	timedOut := errors.Is(req.ctx.Err(), context.DeadlineExceeded) && req.parent.Err() == nil
	req.cancel()

	c.mu.Lock()
	if req.seq != c.seq {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.cancel = nil
	c.state.Loading = false

	var msg string
	if err != nil {
		if timedOut {
			err = ErrSearchTimeout
		}
		msg = errorMessage(err)
		c.state.Error = msg
		c.state.Results = []models.LawyerSearchResult{}
	} else {
		if results == nil {
			results = []models.LawyerSearchResult{}
		}
		c.state.Results = results
	}
	st, v := c.changedLocked()
	c.mu.Unlock()

	c.emit(st, v)
	if err != nil && c.opts.Notifier != nil {
		c.opts.Notifier.Notify(msg, KindError)
	}
	return err
}

func (c *Client) clearLocked() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.Results = []models.LawyerSearchResult{}
	c.state.Loading = false
	c.state.Error = ""
	c.state.LastQuery = ""
}

func (c *Client) snapshotLocked() State {
	st := c.state
	st.Results = append([]models.LawyerSearchResult(nil), c.state.Results...)
	if st.Results == nil {
		st.Results = []models.LawyerSearchResult{}
	}
	return st
}

// changedLocked records a state change and returns the snapshot to emit.
func (c *Client) changedLocked() (State, uint64) {
	c.version++
	return c.snapshotLocked(), c.version
}

// emit delivers snapshots in change order; one overtaken by a newer
// delivery is dropped.
func (c *Client) emit(st State, v uint64) {
	if c.opts.OnChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if v <= c.emitted {
		return
	}
	c.emitted = v
	c.opts.OnChange(st)
}

func errorMessage(err error) string {
	var re *RemoteError
	switch {
	case errors.Is(err, ErrSearchTimeout):
		return "Search timed out. Please try again."
	case errors.As(err, &re):
		return re.Message
	case errors.Is(err, context.Canceled):
		return "Search cancelled"
	}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return utils.PublicMessage(err)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Search failed"
}
