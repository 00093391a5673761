package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const metaSuffix = ".meta"

// Filesystem maps keys to files below a root directory. Each blob has a JSON
// sidecar (key + ".meta") holding its content type, metadata and checksum.
type Filesystem struct {
	root string
	now  func() time.Time
}

// NewFilesystem returns a store rooted at root, creating the directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./archives"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Driver implements Store.
func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// cleanKey rejects keys that would escape the root.
func cleanKey(key string) (string, error) {
	switch {
	case strings.TrimSpace(key) == "":
		return "", errors.New("blob: empty key")
	case strings.HasPrefix(key, "/"):
		return "", fmt.Errorf("blob: absolute key %q", key)
	case strings.Contains(key, ".."):
		return "", fmt.Errorf("blob: key %q contains '..'", key)
	case strings.HasSuffix(key, metaSuffix):
		return "", fmt.Errorf("blob: key %q uses reserved suffix", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (f *Filesystem) paths(key string) (data, meta string, err error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	data = filepath.Join(f.root, filepath.FromSlash(k))
	return data, data + metaSuffix, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	WrittenAt   time.Time         `json:"written_at"`
}

func (s sidecar) info(key, url string) Info {
	return Info{
		Key:          key,
		Size:         s.Size,
		ContentType:  s.ContentType,
		ETag:         s.ETag,
		Metadata:     cloneMetadata(s.Metadata),
		LastModified: s.WrittenAt,
		URL:          url,
	}
}

// Put streams r into a temporary file, then renames it into place.
func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, err
	}
	sc := sidecar{
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		WrittenAt:   f.now(),
	}
	raw, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return Info{}, err
	}
	return sc.info(key, f.localURL(key)), nil
}

// Get opens the blob file for reading.
func (f *Filesystem) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return Info{}, nil, notExist(key, err)
	}
	sc, err := readSidecar(metaPath)
	if err != nil {
		_ = file.Close()
		return Info{}, nil, notExist(key, err)
	}
	return sc.info(key, f.localURL(key)), file, nil
}

// Head reads only the sidecar.
func (f *Filesystem) Head(_ context.Context, key string) (Info, error) {
	_, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	sc, err := readSidecar(metaPath)
	if err != nil {
		return Info{}, notExist(key, err)
	}
	return sc.info(key, f.localURL(key)), nil
}

// Delete removes the blob and its sidecar.
func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root collecting sidecars whose key starts with prefix.
func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(f.root, strings.TrimSuffix(path, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		sc, err := readSidecar(path)
		if err != nil {
			return err
		}
		out = append(out, sc.info(key, f.localURL(key)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL returns an unauthenticated local URL for GET requests.
func (f *Filesystem) PresignURL(_ context.Context, key string, opts SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", ErrUnsupported
	}
	if _, err := cleanKey(key); err != nil {
		return "", err
	}
	return f.localURL(key), nil
}

func (f *Filesystem) localURL(key string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(f.root, key))}).String()
}

func readSidecar(path string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return sidecar{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return sc, nil
}

func notExist(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return err
}
