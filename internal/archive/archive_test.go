package archive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"squadcore/internal/blob"
	"squadcore/internal/infra/persistence/memory"
	"squadcore/internal/infra/persistence/sqlite"
	"squadcore/pkg/domain"
)

func seedScene(t *testing.T, store domain.PersistentStore) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateActor(domain.Actor{Base: domain.Base{ID: "goblin"}, Name: "Goblin", Kind: domain.KindMinion}); err != nil {
			return err
		}
		if _, err := tx.CreateActor(domain.Actor{Base: domain.Base{ID: "boss"}, Name: "Goblin Boss", Kind: domain.KindEnemy}); err != nil {
			return err
		}
		members := []string{"m1", "m2"}
		for _, id := range members {
			tok := domain.Token{Base: domain.Base{ID: id}, Name: "Goblin", ActorID: "goblin"}
			tok.System.SquadID = "sq-1"
			tok.System.CaptainID = "boss-1"
			tok.System.SquadMemberIDs = members
			tok.System.Stamina = domain.Stamina{Max: 10, Value: 7, PerMember: 5}
			if _, err := tx.CreateToken(tok); err != nil {
				return err
			}
		}
		captain := domain.Token{Base: domain.Base{ID: "boss-1"}, Name: "Goblin Boss", ActorID: "boss"}
		captain.System.SquadID = "sq-1"
		captain.System.Stamina = domain.Stamina{Max: 40, Value: 40}
		_, err := tx.CreateToken(captain)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[min(i, len(ts)-1)]
		i++
		return t
	}
}

func TestExportWritesDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	seedScene(t, store)
	blobs := blob.NewMemory()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	arc := New(store, blobs, WithClock(fixedClock(at)))

	info, err := arc.Export(ctx, "crypt")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(info.Key, "scenes/crypt/20260304T050607") || !strings.HasSuffix(info.Key, ".json") {
		t.Fatalf("unexpected key %q", info.Key)
	}
	if info.Metadata["tokens"] != "3" || info.Metadata["actors"] != "2" {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}
	doc, err := arc.Load(ctx, info.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Scene != "crypt" || doc.Version != FormatVersion || !doc.ExportedAt.Equal(at) {
		t.Fatalf("unexpected header %+v", doc)
	}
	if len(doc.Tokens) != 3 || doc.Tokens[0].System.SquadID != "sq-1" {
		t.Fatalf("squad records not archived: %+v", doc.Tokens)
	}
}

func TestImportReplacesScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	seedScene(t, store)
	arc := New(store, blob.NewMemory())

	info, err := arc.Export(ctx, "crypt")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.DeleteToken("m2"); err != nil {
			return err
		}
		_, err := tx.CreateActor(domain.Actor{Base: domain.Base{ID: "hero"}, Name: "Tala", Kind: domain.KindHero})
		return err
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	if _, err := arc.Import(ctx, info.Key); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, ok := store.GetActor("hero"); ok {
		t.Fatalf("actor created after export should be gone")
	}
	m2, ok := store.GetToken("m2")
	if !ok {
		t.Fatalf("deleted token should be restored")
	}
	if m2.System.Stamina.Value != 7 || len(m2.System.SquadMemberIDs) != 2 {
		t.Fatalf("squad record not restored: %+v", m2.System)
	}
	if n := len(store.ListTokens()); n != 3 {
		t.Fatalf("expected 3 tokens, got %d", n)
	}
}

func TestImportBlockedByRulesKeepsScene(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	src := memory.NewStore(nil)
	seedScene(t, src)
	info, err := New(src, blobs).Export(ctx, "crypt")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	engine := domain.NewRulesEngine()
	engine.Register(rejectTokens{})
	dst := memory.NewStore(engine)
	_, err = New(dst, blobs).Import(ctx, info.Key)
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(dst.ListTokens()) != 0 {
		t.Fatalf("blocked import must not change the scene")
	}
}

type rejectTokens struct{}

func (rejectTokens) Name() string { return "reject_tokens" }

func (rejectTokens) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, c := range changes {
		if c.Entity == domain.EntityToken && c.Action == domain.ActionCreate {
			return domain.Result{Violations: []domain.Violation{{Rule: "reject_tokens", Severity: domain.SeverityBlock}}}, nil
		}
	}
	return domain.Result{}, nil
}

func TestImportPersistsToDurableStore(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	src := memory.NewStore(nil)
	seedScene(t, src)
	info, err := New(src, blobs).Export(ctx, "crypt")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	path := filepath.Join(t.TempDir(), "scene.db")
	db, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := New(db, blobs).Import(ctx, info.Key); err != nil {
		t.Fatalf("import: %v", err)
	}
	_ = db.Close()

	reopened, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if n := len(reopened.ListTokens()); n != 3 {
		t.Fatalf("expected 3 persisted tokens, got %d", n)
	}
}

func TestListAndLatest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	arc := New(store, blob.NewMemory(), WithClock(fixedClock(base, base.Add(time.Minute), base.Add(2*time.Minute))))

	for _, scene := range []string{"crypt", "crypt", "forest"} {
		if _, err := arc.Export(ctx, scene); err != nil {
			t.Fatalf("export %s: %v", scene, err)
		}
	}
	crypt, err := arc.List(ctx, "crypt")
	if err != nil || len(crypt) != 2 {
		t.Fatalf("list crypt: %d %v", len(crypt), err)
	}
	all, err := arc.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %d %v", len(all), err)
	}
	latest, err := arc.Latest(ctx, "crypt")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != crypt[1].Key {
		t.Fatalf("expected newest key %q, got %q", crypt[1].Key, latest)
	}
	if _, err := arc.Latest(ctx, "swamp"); !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestSceneNameValidation(t *testing.T) {
	for _, name := range []string{"", " ", "a/b", `a\b`, ".."} {
		if err := ValidateScene(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if err := ValidateScene("crypt-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	if _, err := blobs.Put(ctx, "scenes/x/1.json", strings.NewReader(`{"version":99}`), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := New(memory.NewStore(nil), blobs).Load(ctx, "scenes/x/1.json"); err == nil {
		t.Fatalf("expected version error")
	}
}
