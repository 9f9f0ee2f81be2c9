package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/quest"
	"github.com/ashureev/malaga-quest/internal/relay"
	"github.com/ashureev/malaga-quest/internal/store"
	"github.com/ashureev/malaga-quest/internal/tracker"
	"github.com/ashureev/malaga-quest/internal/transcript"
)

const testPrefix = "malaga-quest-vialia"

// scriptedRelay replies with the next canned line and records the transcripts it saw.
type scriptedRelay struct {
	mu      sync.Mutex
	lines   []string
	seen    [][]relay.Turn
	release chan struct{}
	entered chan struct{}
}

func (s *scriptedRelay) Reply(_ context.Context, turns []relay.Turn) relay.Reply {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, turns)
	line := quest.WelcomeLine
	if len(s.lines) > 0 {
		line, s.lines = s.lines[0], s.lines[1:]
	}
	return relay.Reply{Content: line, Source: relay.SourceLLM}
}

type recordingLog struct {
	mu     sync.Mutex
	events []transcript.Event
}

func (r *recordingLog) Log(ev transcript.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingLog) Close() error { return nil }

func newTestEngine(t *testing.T, kv store.KV, r Relay) (*Engine, *recordingLog) {
	t.Helper()
	tl := &recordingLog{}
	return NewEngine(tracker.New(kv, testPrefix, nil), r, tl, nil), tl
}

func TestSendRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := &scriptedRelay{lines: []string{
		quest.FirstPuzzleLine,
		"¡Has superado esta prueba! Puntuación total: 500/6000",
	}}
	e, tl := newTestEngine(t, store.NewMemory(), r)

	res, err := e.Send(ctx, "Boquerones", "  EMPEZAR  ", ChannelHTTP)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.Reply.Content != quest.FirstPuzzleLine {
		t.Fatalf("unexpected reply %q", res.Reply.Content)
	}
	// greeting, user, assistant
	if got := len(res.State.Messages); got != 3 {
		t.Fatalf("expected 3 messages, got %d", got)
	}
	if res.State.Messages[1].Content != "EMPEZAR" {
		t.Fatalf("expected trimmed user turn, got %q", res.State.Messages[1].Content)
	}
	if first := r.seen[0]; len(first) != 2 || first[0].Role != domain.RoleAssistant || first[1].Role != domain.RoleUser {
		t.Fatalf("relay should see greeting and user turn, got %+v", first)
	}

	res, err = e.Send(ctx, "Boquerones", "1865", ChannelWS)
	if err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	if res.State.Score != 500 || res.State.PuzzlesCompleted != 1 || res.PreviousScore != 0 || !res.PuzzleCounted {
		t.Fatalf("unexpected result %+v state %+v", res, res.State)
	}

	reloaded, err := e.Open(ctx, "Boquerones")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if reloaded.Score != 500 || len(reloaded.Messages) != 5 {
		t.Fatalf("state not persisted: %+v", reloaded)
	}

	if len(tl.events) != 4 {
		t.Fatalf("expected 4 transcript events, got %d", len(tl.events))
	}
	if tl.events[3].Role != domain.RoleAssistant || tl.events[3].Channel != ChannelWS {
		t.Fatalf("unexpected last event %+v", tl.events[3])
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory(), &scriptedRelay{})
	if _, err := e.Send(context.Background(), "g", " \n\t", ChannelHTTP); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendRejectsConcurrentTurnForSameGroup(t *testing.T) {
	r := &scriptedRelay{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, _ := newTestEngine(t, store.NewMemory(), r)

	done := make(chan error, 1)
	go func() {
		_, err := e.Send(context.Background(), "g", "hola", ChannelHTTP)
		done <- err
	}()
	<-r.entered

	if _, err := e.Send(context.Background(), "g", "otra", ChannelHTTP); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}
	if _, err := e.Clear(context.Background(), "g"); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected Clear to be rejected, got %v", err)
	}

	close(r.release)
	if err := <-done; err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if _, err := e.Send(context.Background(), "g", "otra", ChannelHTTP); err != nil {
		t.Fatalf("expected group to accept a new turn, got %v", err)
	}
}

// gatedCompleter answers once released, or fails when its context ends first.
type gatedCompleter struct {
	reply   string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCompleter) Complete(ctx context.Context, _ string, _ []relay.Turn) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return g.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSendSurvivesCallerCancellation(t *testing.T) {
	kv := store.NewMemory()
	tr := tracker.New(kv, testPrefix, nil)

	st, err := tr.Open(context.Background(), "Biznagas")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	st.Score = 3000
	st.Level = tracker.LevelForScore(3000)
	st.PuzzlesCompleted = 5
	if err := tr.Persist(context.Background(), st); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	gc := &gatedCompleter{
		reply:   "¡Has superado esta prueba! Puntuación total: 3600/6000",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	e := NewEngine(tr, relay.NewService(gc, "system", time.Minute, nil), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Send(ctx, "Biznagas", "creo que 1865", ChannelWS)
		done <- outcome{res, err}
	}()

	<-gc.entered
	cancel()
	close(gc.release)

	out := <-done
	if out.err != nil {
		t.Fatalf("Send failed: %v", out.err)
	}
	if out.res.Reply.Source != relay.SourceLLM {
		t.Fatalf("expected the model reply, got %+v", out.res.Reply)
	}

	reloaded, err := e.Open(context.Background(), "Biznagas")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if reloaded.Score != 3600 || reloaded.PuzzlesCompleted != 6 {
		t.Fatalf("progress overwritten: score=%d puzzles=%d", reloaded.Score, reloaded.PuzzlesCompleted)
	}
	last, _ := reloaded.LastMessage()
	if last.Content != gc.reply {
		t.Fatalf("expected model reply persisted, got %q", last.Content)
	}
}

func TestSendDifferentGroupsInParallel(t *testing.T) {
	r := &scriptedRelay{release: make(chan struct{}), entered: make(chan struct{}, 2)}
	e, _ := newTestEngine(t, store.NewMemory(), r)

	var wg sync.WaitGroup
	for _, g := range []string{"a", "b"} {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Send(context.Background(), g, "hola", ChannelHTTP); err != nil {
				t.Errorf("Send(%s) failed: %v", g, err)
			}
		}()
	}
	// Both groups reach the relay before either is released.
	<-r.entered
	<-r.entered
	close(r.release)
	wg.Wait()
}

func TestClearResetsSession(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	e, _ := newTestEngine(t, kv, &scriptedRelay{lines: []string{"Puntuación total: 2400/6000. Has superado esta prueba."}})

	if _, err := e.Send(ctx, "g", "respuesta", ChannelHTTP); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	st, err := e.Clear(ctx, "g")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if st.Score != 0 || st.Level != domain.LevelNovice || st.PuzzlesCompleted != 0 || len(st.Messages) != 0 {
		t.Fatalf("unexpected reset state %+v", st)
	}
	keys, _ := kv.Keys(ctx, testPrefix)
	if len(keys) != 0 {
		t.Fatalf("expected all keys removed, got %v", keys)
	}
}

func TestListReturnsPlayedSessions(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory(), &scriptedRelay{})

	if _, err := e.Open(ctx, "solo-saludo"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := e.Send(ctx, "jugado", "empezar", ChannelHTTP); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sessions, err := e.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Group != "jugado" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestPurgeStale(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	e, _ := newTestEngine(t, kv, &scriptedRelay{})

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return old })
	if _, err := e.Send(ctx, "viejo", "hola", ChannelHTTP); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	fresh := old.Add(60 * 24 * time.Hour)
	kv.SetClock(func() time.Time { return fresh })
	if _, err := e.Send(ctx, "nuevo", "hola", ChannelHTTP); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	n, err := e.PurgeStale(ctx, fresh.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeStale failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged group, got %d", n)
	}

	keys, _ := kv.Keys(ctx, testPrefix+"-viejo")
	if len(keys) != 0 {
		t.Fatalf("expected stale group removed, got %v", keys)
	}
	keys, _ = kv.Keys(ctx, testPrefix+"-nuevo")
	if len(keys) != 4 {
		t.Fatalf("expected fresh group kept, got %v", keys)
	}
}
