package tagging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the autocomplete state of a session.
type State int

const (
	StateIdle State = iota
	StateTyping
	StateLoading
	StateSuggesting
	StateEmpty
	StateDisambiguating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTyping:
		return "typing"
	case StateLoading:
		return "loading"
	case StateSuggesting:
		return "suggesting"
	case StateEmpty:
		return "empty"
	case StateDisambiguating:
		return "disambiguating"
	default:
		return "unknown"
	}
}

// Key is a navigation key forwarded by the host input.
type Key int

const (
	KeyDown Key = iota + 1
	KeyUp
	KeyEnter
	KeyTab
	KeyEscape
)

const (
	// DefaultDebounce is the delay between the last keystroke and the lookup.
	DefaultDebounce = 200 * time.Millisecond
	// DefaultLimit is the number of candidates requested per lookup.
	DefaultLimit = 10
)

// SessionConfig configures a Session.
type SessionConfig struct {
	Searcher Searcher
	Debounce time.Duration
	Limit    int
	Triggers TriggerOptions
	Logger   *slog.Logger
	// OnChange receives a snapshot after every state change. It is called with the
	// session lock held and must not call back into the session.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the visible session state.
type Snapshot struct {
	State          State
	Trigger        byte
	Query          string
	Cursor         int
	Candidates     []TagCandidate
	SelectedIndex  int
	IsOpen         bool
	IsLoading      bool
	Disambiguation *Disambiguation
}

// Session tracks one autocomplete interaction for a single input.
//
// The host forwards edits with Update and navigation keys with HandleKey; suggestions are
// fetched after a debounce delay. Every re-armed timer bumps a generation counter, and a
// lookup result is applied only if its generation is still current.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	closed         bool
	state          State
	text           string
	cursor         int
	trigger        byte
	triggerStart   int
	query          string
	candidates     []TagCandidate
	selected       int
	disambiguation *Disambiguation
	generation     uint64
	timer          *time.Timer

	// dismissed holds the buffer state at the last Escape or Blur. The session stays
	// idle until the text or caret moves away from it.
	dismissed *dismissal
}

type dismissal struct {
	text   string
	cursor int
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Update records an edit or caret move of the host buffer.
func (s *Session) Update(text string, cursor int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.snapshotLocked()
	}
	if d := s.dismissed; d != nil {
		if d.text == text && d.cursor == cursor {
			return s.snapshotLocked()
		}
		s.dismissed = nil
	}
	s.text = text
	s.cursor = cursor

	trigger, query, start, ok := openTrigger(text, cursor)
	if !ok {
		if s.state != StateIdle {
			s.resetLocked()
			s.notifyLocked()
		}
		return s.snapshotLocked()
	}

	if s.state != StateIdle && trigger == s.trigger && start == s.triggerStart && query == s.query {
		return s.snapshotLocked()
	}

	s.trigger = trigger
	s.triggerStart = start
	s.query = query
	s.candidates = nil
	s.selected = 0
	s.disambiguation = nil
	s.state = StateTyping
	s.armLocked()
	s.notifyLocked()
	return s.snapshotLocked()
}

// HandleKey processes a navigation key. handled reports whether the key was consumed by
// the suggestion list or dialog. A commit returns an applied Edit the host must adopt.
func (s *Session) HandleKey(key Key) (edit Edit, handled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Edit{}, false
	}

	switch s.state {
	case StateDisambiguating:
		if key == KeyEscape {
			s.cancelLocked()
			return Edit{}, true
		}
		return Edit{}, false

	case StateSuggesting:
		n := len(s.candidates)
		switch key {
		case KeyDown:
			s.selected = (s.selected + 1 + n) % n
			s.notifyLocked()
			return Edit{}, true
		case KeyUp:
			s.selected = (s.selected - 1 + n) % n
			s.notifyLocked()
			return Edit{}, true
		case KeyEnter, KeyTab:
			if s.selected < 0 || s.selected >= n {
				return Edit{}, false
			}
			return s.commitLocked(s.candidates[s.selected]), true
		case KeyEscape:
			s.cancelLocked()
			return Edit{}, true
		}
		return Edit{}, false

	case StateTyping, StateLoading, StateEmpty:
		if key == KeyEscape {
			s.cancelLocked()
		}
		return Edit{}, false
	}

	return Edit{}, false
}

// Select commits the suggestion at index, as when it is clicked.
func (s *Session) Select(index int) (Edit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateSuggesting || index < 0 || index >= len(s.candidates) {
		return Edit{}, false
	}
	return s.commitLocked(s.candidates[index]), true
}

// Choose commits a disambiguation match.
func (s *Session) Choose(index int) (Edit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateDisambiguating || s.disambiguation == nil {
		return Edit{}, false
	}
	if index < 0 || index >= len(s.disambiguation.Matches) {
		return Edit{}, false
	}
	return s.commitLocked(s.disambiguation.Matches[index]), true
}

// Blur cancels the session when the input loses focus.
func (s *Session) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelLocked()
}

// Close releases the session. Pending timers are stopped and in-flight lookups are
// awaited; their results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.resetLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) armLocked() {
	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.fire(gen)
	})
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation || s.state != StateTyping {
		return
	}

	kinds := KindsForTrigger(s.trigger, s.cfg.Triggers)
	if len(kinds) == 0 || s.query == "" || s.cfg.Searcher == nil {
		s.state = StateEmpty
		s.notifyLocked()
		return
	}

	s.state = StateLoading
	s.notifyLocked()

	query := s.query
	s.wg.Add(1)
	go s.lookup(gen, query, kinds)
}

func (s *Session) lookup(gen uint64, query string, kinds []TagKind) {
	defer s.wg.Done()

	results, err := s.cfg.Searcher.Search(s.ctx, query, kinds, s.cfg.Limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation || s.state != StateLoading {
		s.logger.Debug("dropping stale tag suggestions", "query", query, "generation", gen)
		return
	}
	if err != nil {
		s.logger.Warn("tag lookup failed", "query", query, "error", err)
		s.candidates = nil
		s.state = StateEmpty
		s.notifyLocked()
		return
	}
	s.applyLocked(query, results)
	s.notifyLocked()
}

func (s *Session) applyLocked(query string, results []TagCandidate) {
	if len(results) == 0 {
		s.candidates = nil
		s.state = StateEmpty
		return
	}
	if d := Disambiguate(query, results); d != nil {
		s.candidates = nil
		s.disambiguation = d
		s.state = StateDisambiguating
		return
	}
	s.candidates = results
	s.selected = 0
	s.state = StateSuggesting
}

func (s *Session) commitLocked(c TagCandidate) Edit {
	edit := Commit(s.text, s.cursor, s.trigger, len(s.query), c)
	if !edit.Applied {
		s.logger.Warn("tag commit found no open trigger",
			"cursor", s.cursor,
			"trigger", string(s.trigger),
			"query", s.query,
		)
	} else {
		s.text = edit.Text
		s.cursor = edit.Cursor
	}
	s.resetLocked()
	s.notifyLocked()
	return edit
}

func (s *Session) cancelLocked() {
	s.dismissed = &dismissal{text: s.text, cursor: s.cursor}
	s.resetLocked()
	s.notifyLocked()
}

// resetLocked returns to idle and invalidates pending timers and lookups.
func (s *Session) resetLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = StateIdle
	s.trigger = 0
	s.triggerStart = 0
	s.query = ""
	s.candidates = nil
	s.selected = 0
	s.disambiguation = nil
}

func (s *Session) notifyLocked() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(s.snapshotLocked())
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         s.state,
		Trigger:       s.trigger,
		Query:         s.query,
		Cursor:        s.cursor,
		SelectedIndex: s.selected,
		IsOpen:        s.state == StateSuggesting,
		IsLoading:     s.state == StateLoading,
	}
	if len(s.candidates) > 0 {
		snap.Candidates = append([]TagCandidate(nil), s.candidates...)
	}
	if s.disambiguation != nil {
		d := *s.disambiguation
		d.Matches = append([]TagCandidate(nil), s.disambiguation.Matches...)
		snap.Disambiguation = &d
	}
	return snap
}
