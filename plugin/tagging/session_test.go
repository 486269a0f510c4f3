package tagging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testDebounce = 5 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 2 * time.Millisecond
)

type searchCall struct {
	query string
	kinds []TagKind
	limit int
}

// fakeSearcher answers from a table keyed by query. Queries listed in gates block
// until their channel is closed.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results map[string][]TagCandidate
	err     error
	gates   map[string]chan struct{}
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: make(map[string][]TagCandidate),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, kinds []TagKind, limit int) ([]TagCandidate, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query: query, kinds: kinds, limit: limit})
	gate := f.gates[query]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

func newTestSession(t *testing.T, searcher Searcher, opts ...func(*SessionConfig)) *Session {
	t.Helper()
	cfg := SessionConfig{
		Searcher: searcher,
		Debounce: testDebounce,
		Triggers: DefaultTriggerOptions(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := NewSession(cfg)
	t.Cleanup(s.Close)
	return s
}

func waitForState(t *testing.T, s *Session, state State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == state
	}, waitFor, tick, "session never reached %s", state)
	return s.Snapshot()
}

func TestSession_SuggestAndCommit(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{
		{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser},
		{ID: "2", Name: "Sara", Slug: "sara", Kind: KindUser},
	}
	s := newTestSession(t, searcher)

	snap := s.Update("Hi @sa world", 6)
	assert.Equal(t, StateTyping, snap.State)
	assert.Equal(t, byte('@'), snap.Trigger)
	assert.Equal(t, "sa", snap.Query)

	snap = waitForState(t, s, StateSuggesting)
	assert.True(t, snap.IsOpen)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 0, snap.SelectedIndex)
	require.Len(t, snap.Candidates, 2)

	calls := searcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []TagKind{KindUser, KindEntity}, calls[0].kinds)
	assert.Equal(t, DefaultLimit, calls[0].limit)

	_, handled := s.HandleKey(KeyDown)
	require.True(t, handled)

	edit, handled := s.HandleKey(KeyEnter)
	require.True(t, handled)
	assert.Equal(t, Edit{Text: "Hi @sara world", Cursor: 9, Applied: true}, edit)

	snap = s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.IsOpen)
	assert.Empty(t, snap.Candidates)

	// The host adopts the edit; the caret now sits outside any trigger.
	assert.Equal(t, StateIdle, s.Update(edit.Text, edit.Cursor).State)
}

func TestSession_SelectionWraps(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["b"] = []TagCandidate{
		{ID: "1", Name: "Books", Slug: "books", Kind: KindTopic},
		{ID: "2", Name: "Bookclub", Slug: "bookclub", Kind: KindTopic},
		{ID: "3", Name: "Biography", Slug: "biography", Kind: KindTopic},
	}
	s := newTestSession(t, searcher)

	s.Update("#b", 2)
	waitForState(t, s, StateSuggesting)

	s.HandleKey(KeyUp)
	assert.Equal(t, 2, s.Snapshot().SelectedIndex)

	s.HandleKey(KeyDown)
	assert.Equal(t, 0, s.Snapshot().SelectedIndex)

	s.HandleKey(KeyDown)
	s.HandleKey(KeyDown)
	assert.Equal(t, 2, s.Snapshot().SelectedIndex)

	s.HandleKey(KeyDown)
	assert.Equal(t, 0, s.Snapshot().SelectedIndex)

	edit, ok := s.Select(2)
	require.True(t, ok)
	assert.Equal(t, "#Biography ", edit.Text)
	assert.Equal(t, 11, edit.Cursor)
}

func TestSession_Disambiguation(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["alex"] = []TagCandidate{
		{ID: "1", Name: "Alex", Slug: "alex", Kind: KindUser},
		{ID: "2", Name: "ALEX", Slug: "alex-2", Kind: KindUser},
		{ID: "3", Name: "alex", Slug: "alex-3", Kind: KindUser},
	}
	s := newTestSession(t, searcher)

	s.Update("@alex", 5)
	snap := waitForState(t, s, StateDisambiguating)
	assert.False(t, snap.IsOpen)
	assert.Empty(t, snap.Candidates)
	require.NotNil(t, snap.Disambiguation)
	assert.Equal(t, "alex", snap.Disambiguation.Query)
	assert.Len(t, snap.Disambiguation.Matches, 3)

	// Navigation keys do not auto-pick.
	_, handled := s.HandleKey(KeyEnter)
	assert.False(t, handled)
	assert.Equal(t, StateDisambiguating, s.Snapshot().State)

	edit, ok := s.Choose(1)
	require.True(t, ok)
	assert.Equal(t, Edit{Text: "@alex-2 ", Cursor: 8, Applied: true}, edit)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSession_DisambiguationCancel(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["alex"] = []TagCandidate{
		{ID: "1", Name: "Alex", Slug: "alex", Kind: KindUser},
		{ID: "2", Name: "Alex", Slug: "alex-2", Kind: KindUser},
	}
	s := newTestSession(t, searcher)

	s.Update("hey @alex", 9)
	waitForState(t, s, StateDisambiguating)

	edit, handled := s.HandleKey(KeyEscape)
	assert.True(t, handled)
	assert.False(t, edit.Applied)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Nil(t, s.Snapshot().Disambiguation)
}

func TestSession_SingleExactMatchOpensList(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["alex"] = []TagCandidate{
		{ID: "1", Name: "Alex", Slug: "alex", Kind: KindUser},
		{ID: "2", Name: "Alexander", Slug: "alexander", Kind: KindUser},
		{ID: "3", Name: "Alexis", Slug: "alexis", Kind: KindUser},
	}
	s := newTestSession(t, searcher)

	s.Update("@alex", 5)
	snap := waitForState(t, s, StateSuggesting)
	assert.Len(t, snap.Candidates, 3)
	assert.Nil(t, snap.Disambiguation)
}

func TestSession_EmptyAndFailedLookups(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		s := newTestSession(t, newFakeSearcher())
		s.Update("#zzz", 4)
		snap := waitForState(t, s, StateEmpty)
		assert.False(t, snap.IsOpen)
		assert.False(t, snap.IsLoading)
	})

	t.Run("query failure", func(t *testing.T) {
		searcher := newFakeSearcher()
		searcher.err = ErrQueryFailed
		s := newTestSession(t, searcher)
		s.Update("#zzz", 4)
		snap := waitForState(t, s, StateEmpty)
		assert.False(t, snap.IsOpen)
		assert.Empty(t, snap.Candidates)
	})

	t.Run("disabled trigger skips the lookup", func(t *testing.T) {
		searcher := newFakeSearcher()
		s := newTestSession(t, searcher, func(cfg *SessionConfig) {
			cfg.Triggers = TriggerOptions{AllowMentions: true}
		})
		s.Update("#books", 6)
		waitForState(t, s, StateEmpty)
		assert.Empty(t, searcher.Calls())
	})

	t.Run("bare trigger skips the lookup", func(t *testing.T) {
		searcher := newFakeSearcher()
		s := newTestSession(t, searcher)
		s.Update("@", 1)
		waitForState(t, s, StateEmpty)
		assert.Empty(t, searcher.Calls())
	})
}

func TestSession_DebounceKeepsLatestQuery(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["dun"] = []TagCandidate{{ID: "1", Name: "Dune", Slug: "dune", Kind: KindEntity}}
	s := newTestSession(t, searcher, func(cfg *SessionConfig) {
		cfg.Debounce = 50 * time.Millisecond
	})

	s.Update("@d", 2)
	s.Update("@du", 3)
	s.Update("@dun", 4)

	waitForState(t, s, StateSuggesting)
	calls := searcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "dun", calls[0].query)
}

func TestSession_StaleResponseDropped(t *testing.T) {
	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["al"] = gate
	searcher.results["al"] = []TagCandidate{{ID: "old", Name: "Alan", Slug: "alan", Kind: KindUser}}
	searcher.results["ale"] = []TagCandidate{{ID: "new", Name: "Alena", Slug: "alena", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("@al", 3)
	waitForState(t, s, StateLoading)

	// The query changes while the first lookup is still in flight.
	s.Update("@ale", 4)
	snap := waitForState(t, s, StateSuggesting)
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, "new", snap.Candidates[0].ID)

	close(gate)
	require.Eventually(t, func() bool {
		return len(searcher.Calls()) == 2
	}, waitFor, tick)

	// Give the released lookup a chance to land; it must not replace the list.
	time.Sleep(20 * time.Millisecond)
	snap = s.Snapshot()
	assert.Equal(t, "ale", snap.Query)
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, "new", snap.Candidates[0].ID)
}

func TestSession_CancelAfterLookupStarted(t *testing.T) {
	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["sam"] = gate
	searcher.results["sam"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("@sam", 4)
	waitForState(t, s, StateLoading)
	s.Blur()
	assert.Equal(t, StateIdle, s.Snapshot().State)

	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Candidates)
}

func TestSession_BreakingCharacterCloses(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("@sa", 3)
	waitForState(t, s, StateSuggesting)

	snap := s.Update("@sa ", 4)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Candidates)

	_, handled := s.HandleKey(KeyEnter)
	assert.False(t, handled)
}

func TestSession_EscapeClosesList(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("@sa", 3)
	waitForState(t, s, StateSuggesting)

	edit, handled := s.HandleKey(KeyEscape)
	assert.True(t, handled)
	assert.False(t, edit.Applied)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSession_EscapeStaysClosedUntilEdit(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	searcher.results["sam"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("Hi @sa", 6)
	waitForState(t, s, StateSuggesting)
	s.HandleKey(KeyEscape)

	// A caret report at the same position must not reopen the list.
	assert.Equal(t, StateIdle, s.Update("Hi @sa", 6).State)
	time.Sleep(10 * testDebounce)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Len(t, searcher.Calls(), 1)

	// Typing inside the trigger starts a new lookup.
	assert.Equal(t, StateTyping, s.Update("Hi @sam", 7).State)
	waitForState(t, s, StateSuggesting)
	assert.Len(t, searcher.Calls(), 2)
}

func TestSession_BlurStaysClosedUntilCaretMoves(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}
	s := newTestSession(t, searcher)

	s.Update("@sa @sa", 3)
	waitForState(t, s, StateSuggesting)
	s.Blur()

	assert.Equal(t, StateIdle, s.Update("@sa @sa", 3).State)
	assert.Equal(t, StateTyping, s.Update("@sa @sa", 7).State)
}

func TestSession_OnChange(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["sa"] = []TagCandidate{{ID: "1", Name: "Sam", Slug: "sam", Kind: KindUser}}

	var mu sync.Mutex
	var states []State
	s := newTestSession(t, searcher, func(cfg *SessionConfig) {
		cfg.OnChange = func(snap Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, snap.State)
		}
	})

	s.Update("@sa", 3)
	waitForState(t, s, StateSuggesting)
	s.HandleKey(KeyEscape)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateTyping, StateLoading, StateSuggesting, StateIdle}, states)
}

func TestSession_CloseReleasesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["slow"] = gate

	s := NewSession(SessionConfig{Searcher: searcher, Debounce: 100 * time.Millisecond, Triggers: DefaultTriggerOptions()})
	s.Update("#slow", 5)
	waitForState(t, s, StateLoading)

	// Another debounce is pending when the input goes away.
	s.Update("#slower", 7)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	close(gate)
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}

	assert.Equal(t, StateIdle, s.Update("#again", 6).State)
	_, ok := s.Select(0)
	assert.False(t, ok)
	assert.Len(t, searcher.Calls(), 1)
}
