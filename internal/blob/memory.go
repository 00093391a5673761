package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	info Info
	data []byte
}

// Memory keeps blobs in process memory.
type Memory struct {
	mu   sync.RWMutex
	objs map[string]memoryObject
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{objs: make(map[string]memoryObject)} }

// Driver implements Store.
func (m *Memory) Driver() Driver { return DriverMemory }

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if strings.TrimSpace(key) == "" {
		return Info{}, fmt.Errorf("blob: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objs[key]; exists {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}
	sum := sha256.Sum256(data)
	info := Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	m.objs[key] = memoryObject{info: info, data: data}
	return copyInfo(info), nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return Info{}, nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return copyInfo(obj.info), io.NopCloser(bytes.NewReader(slices.Clone(obj.data))), nil
}

// Head implements Store.
func (m *Memory) Head(_ context.Context, key string) (Info, error) {
	m.mu.RLock()
	obj, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return copyInfo(obj.info), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[key]
	delete(m.objs, key)
	return ok, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.objs))
	for key, obj := range m.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(obj.info))
		}
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignURL is not available for process memory.
func (m *Memory) PresignURL(context.Context, string, SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}

func copyInfo(in Info) Info {
	in.Metadata = cloneMetadata(in.Metadata)
	return in
}
