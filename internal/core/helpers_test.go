package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"squadcore/internal/squad"
)

type noticeCapture struct {
	mu      sync.Mutex
	notices []squad.Notice
}

func (c *noticeCapture) Notify(_ context.Context, n squad.Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
}

func (c *noticeCapture) last() (squad.Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return squad.Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func sequentialIDs() squad.IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("squad-%d", n)
	}
}

type scene struct {
	svc     *Service
	notices *noticeCapture
	minion  Actor
	enemy   Actor
}

func newScene(t *testing.T, opts ...Option) *scene {
	t.Helper()
	notices := &noticeCapture{}
	base := []Option{WithIDGenerator(sequentialIDs()), WithNotifier(notices)}
	svc := NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
	ctx := context.Background()
	minion, _, err := svc.CreateActor(ctx, Actor{Name: "Goblin", Kind: KindMinion, System: ActorSystem{Stamina: Stamina{Max: 10}}})
	if err != nil {
		t.Fatalf("create minion actor: %v", err)
	}
	enemy, _, err := svc.CreateActor(ctx, Actor{Name: "Goblin Boss", Kind: KindEnemy, System: ActorSystem{Stamina: Stamina{Max: 40}}})
	if err != nil {
		t.Fatalf("create enemy actor: %v", err)
	}
	return &scene{svc: svc, notices: notices, minion: minion, enemy: enemy}
}

func (s *scene) place(t *testing.T, actor Actor, x int) Token {
	t.Helper()
	tok, _, err := s.svc.PlaceToken(context.Background(), actor.ID, Placement{X: x})
	if err != nil {
		t.Fatalf("place %s: %v", actor.Name, err)
	}
	return tok
}

func (s *scene) token(t *testing.T, id string) Token {
	t.Helper()
	tok, err := s.svc.GetToken(context.Background(), id)
	if err != nil {
		t.Fatalf("get token %s: %v", id, err)
	}
	return tok
}
