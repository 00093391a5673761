// Package archive saves whole scenes (actors and tokens with their squad
// records) to a blob store and restores them.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"squadcore/internal/blob"
	"squadcore/internal/logging"
	"squadcore/pkg/domain"
)

// FormatVersion is written into every document.
const FormatVersion = 1

const (
	keyPrefix   = "scenes/"
	contentType = "application/json"
	stampLayout = "20060102T150405.000000000Z"
)

// Document is the archived form of a scene.
type Document struct {
	Version    int            `json:"version"`
	Scene      string         `json:"scene"`
	ExportedAt time.Time      `json:"exported_at"`
	Actors     []domain.Actor `json:"actors"`
	Tokens     []domain.Token `json:"tokens"`
}

// Archive moves scenes between a persistent store and a blob store.
type Archive struct {
	store  domain.PersistentStore
	blobs  blob.Store
	logger logging.Logger
	now    func() time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Archive) { a.logger = logging.OrNoop(l) }
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Archive over the given stores.
func New(store domain.PersistentStore, blobs blob.Store, opts ...Option) *Archive {
	a := &Archive{
		store:  store,
		blobs:  blobs,
		logger: logging.Noop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidateScene rejects scene names that cannot be used as a key segment.
func ValidateScene(scene string) error {
	switch {
	case strings.TrimSpace(scene) == "":
		return errors.New("archive: scene name required")
	case strings.ContainsAny(scene, `/\`), strings.Contains(scene, ".."):
		return fmt.Errorf("archive: invalid scene name %q", scene)
	}
	return nil
}

// Export writes the current scene to scenes/<scene>/<timestamp>.json.
func (a *Archive) Export(ctx context.Context, scene string) (blob.Info, error) {
	if err := ValidateScene(scene); err != nil {
		return blob.Info{}, err
	}
	doc := Document{Version: FormatVersion, Scene: scene, ExportedAt: a.now().UTC()}
	if err := a.store.View(ctx, func(v domain.TransactionView) error {
		doc.Actors = v.ListActors()
		doc.Tokens = v.ListTokens()
		return nil
	}); err != nil {
		return blob.Info{}, fmt.Errorf("read scene: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode scene: %w", err)
	}
	key := keyPrefix + scene + "/" + doc.ExportedAt.Format(stampLayout) + ".json"
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"scene":   scene,
			"actors":  fmt.Sprint(len(doc.Actors)),
			"tokens":  fmt.Sprint(len(doc.Tokens)),
			"version": fmt.Sprint(FormatVersion),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store archive: %w", err)
	}
	a.logger.Info("scene exported", "component", "archive", "scene", scene, "key", key, "actors", len(doc.Actors), "tokens", len(doc.Tokens))
	return info, nil
}

// Load reads and decodes an archived document without applying it.
func (a *Archive) Load(ctx context.Context, key string) (Document, error) {
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("fetch archive: %w", err)
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode archive %s: %w", key, err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("archive %s: unsupported version %d", key, doc.Version)
	}
	return doc, nil
}

// Import replaces the current scene with the archived one in a single
// transaction. Rules run against the restored scene; a blocking violation
// leaves the current scene untouched.
func (a *Archive) Import(ctx context.Context, key string) (domain.Result, error) {
	doc, err := a.Load(ctx, key)
	if err != nil {
		return domain.Result{}, err
	}
	res, err := a.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		for _, t := range view.ListTokens() {
			if err := tx.DeleteToken(t.ID); err != nil {
				return err
			}
		}
		for _, act := range view.ListActors() {
			if err := tx.DeleteActor(act.ID); err != nil {
				return err
			}
		}
		for _, act := range doc.Actors {
			if _, err := tx.CreateActor(act); err != nil {
				return fmt.Errorf("restore actor %s: %w", act.ID, err)
			}
		}
		for _, t := range doc.Tokens {
			if _, err := tx.CreateToken(t); err != nil {
				return fmt.Errorf("restore token %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	a.logger.Info("scene imported", "component", "archive", "scene", doc.Scene, "key", key, "actors", len(doc.Actors), "tokens", len(doc.Tokens))
	return res, nil
}

// List returns the archives of one scene, or of every scene when scene is
// empty, oldest first.
func (a *Archive) List(ctx context.Context, scene string) ([]blob.Info, error) {
	prefix := keyPrefix
	if scene != "" {
		if err := ValidateScene(scene); err != nil {
			return nil, err
		}
		prefix += scene + "/"
	}
	return a.blobs.List(ctx, prefix)
}

// Latest returns the key of the newest archive of scene.
func (a *Archive) Latest(ctx context.Context, scene string) (string, error) {
	infos, err := a.List(ctx, scene)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("archive: no archives for scene %q: %w", scene, blob.ErrNotExist)
	}
	return infos[len(infos)-1].Key, nil
}
