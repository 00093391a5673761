package squad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"squadcore/internal/infra/persistence/memory"
	"squadcore/pkg/domain"
)

type renderLog struct {
	mu  sync.Mutex
	ids []string
}

func (r *renderLog) Render(_ context.Context, id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *renderLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *renderLog) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for r.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least %d renders, got %d", n, r.count())
		}
		time.Sleep(time.Millisecond)
	}
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *noticeLog) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

type warnLog struct {
	mu    sync.Mutex
	warns []string
}

func (l *warnLog) Debug(string, ...any) {}
func (l *warnLog) Info(string, ...any)  {}
func (l *warnLog) Error(string, ...any) {}
func (l *warnLog) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// failingStore fails token updates for one id.
type failingStore struct {
	*memory.Store
	mu     sync.Mutex
	failID string
}

func (s *failingStore) setFail(id string) {
	s.mu.Lock()
	s.failID = id
	s.mu.Unlock()
}

func (s *failingStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	failID := s.failID
	s.mu.Unlock()
	return s.Store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(failingTx{Transaction: tx, failID: failID})
	})
}

type failingTx struct {
	domain.Transaction
	failID string
}

var errInjected = errors.New("injected failure")

func (tx failingTx) UpdateToken(id string, mutator func(*domain.Token) error) (domain.Token, error) {
	if id == tx.failID {
		return domain.Token{}, errInjected
	}
	return tx.Transaction.UpdateToken(id, mutator)
}

type fixture struct {
	store   *failingStore
	engine  *Engine
	renders *renderLog
	notices *noticeLog
	warns   *warnLog
	ids     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &failingStore{Store: memory.NewStore(nil)},
		renders: &renderLog{},
		notices: &noticeLog{},
		warns:   &warnLog{},
	}
	f.engine = NewEngine(f.store,
		WithIDGenerator(func() string {
			f.ids++
			return fmt.Sprintf("squad-%d", f.ids)
		}),
		WithRenderer(f.renders),
		WithNotifier(f.notices),
		WithLogger(f.warns),
	)
	return f
}

func (f *fixture) place(t *testing.T, tok domain.Token) {
	t.Helper()
	_, err := f.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if tok.ActorID != "" {
			if _, ok := tx.FindActor(tok.ActorID); !ok {
				if _, err := tx.CreateActor(domain.Actor{Base: domain.Base{ID: tok.ActorID}, Name: tok.ActorID, Kind: tok.Kind}); err != nil {
					return err
				}
			}
		}
		_, err := tx.CreateToken(tok)
		return err
	})
	if err != nil {
		t.Fatalf("place %s: %v", tok.ID, err)
	}
}

func (f *fixture) minion(t *testing.T, id string, perMember int) {
	t.Helper()
	f.place(t, domain.Token{
		Base: domain.Base{ID: id},
		Name: id,
		Kind: domain.KindMinion,
		System: domain.ActorSystem{
			Stamina: domain.Stamina{Max: perMember, Value: perMember, PerMember: perMember},
		},
	})
}

func (f *fixture) enemy(t *testing.T, id string) {
	t.Helper()
	f.place(t, domain.Token{Base: domain.Base{ID: id}, Name: id, Kind: domain.KindEnemy, System: domain.ActorSystem{Stamina: domain.Stamina{Max: 40, Value: 40}}})
}

func (f *fixture) token(t *testing.T, id string) domain.Token {
	t.Helper()
	tok, ok := f.store.GetToken(id)
	if !ok {
		t.Fatalf("token %s not found", id)
	}
	return tok
}

func (f *fixture) squad(t *testing.T, memberID string) *Squad {
	t.Helper()
	sq, err := f.engine.GetSquad(context.Background(), memberID)
	if err != nil {
		t.Fatalf("get squad for %s: %v", memberID, err)
	}
	return sq
}

func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	if violations := CheckInvariants(f.store.ListTokens()); len(violations) > 0 {
		for _, v := range violations {
			t.Errorf("invariant violated in %s: %s", v.EntityID, v.Message)
		}
		t.FailNow()
	}
}

func (f *fixture) assertStamina(t *testing.T, id string, wantMax, wantValue int) {
	t.Helper()
	got := f.token(t, id).System.Stamina
	if got.Max != wantMax || got.Value != wantValue {
		t.Fatalf("%s: expected max=%d value=%d, got max=%d value=%d", id, wantMax, wantValue, got.Max, got.Value)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
