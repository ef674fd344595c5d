// Package memory implements an in-process store.Store backend, used by
// tests and single-process engines that do not need durability.
package memory

import (
	"context"
	"crypto/sha256"
	"sort"
	"strings"
	"sync"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

type object struct {
	data     []byte
	mimeType string
	version  types.UpdateVersion
}

// Store is a store.Store implementation backed by a map guarded by a
// sync.RWMutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object
	nextVer types.UpdateVersion
}

func New() *Store {
	return &Store{objects: make(map[string]*object)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, namespace, path types.Path) ([]byte, store.Meta, error) {
	key := store.EffectiveKey(namespace, path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, store.Meta{}, errs.Resource("store.Get", "object not found: "+key, nil)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, metaOf(key, obj), nil
}

func metaOf(key string, obj *object) store.Meta {
	return store.Meta{
		Path:     key,
		MimeType: obj.mimeType,
		Size:     int64(len(obj.data)),
		Version:  obj.version,
		Checksum: sha256.Sum256(obj.data),
	}
}

func (s *Store) List(_ context.Context, namespace types.Path, prefix types.Path, offset string) ([]store.Meta, error) {
	fullPrefix := store.EffectiveKey(namespace, prefix)

	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, fullPrefix) && k > offset {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]store.Meta, 0, len(keys))
	for _, k := range keys {
		out = append(out, metaOf(k, s.objects[k]))
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) Put(_ context.Context, namespace, path types.Path, mode store.PutMode, data []byte) (store.PutResult, error) {
	if len(data) > store.MaxInMemoryObject {
		return store.PutResult{}, errs.Resource("store.Put", "object exceeds 2 MiB in-memory limit", nil)
	}
	key := store.EffectiveKey(namespace, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.objects[key]

	switch mode.Kind() {
	case store.KindCreate:
		if exists {
			return store.PutResult{}, errs.Conflict("store.Put", "object already exists: "+key, nil)
		}
	case store.KindUpdate:
		if !exists {
			return store.PutResult{}, errs.Conflict("store.Put", "object does not exist: "+key, nil)
		}
		if existing.version != mode.Version() {
			return store.PutResult{}, errs.Conflict("store.Put", "version conflict on "+key, nil)
		}
	case store.KindOverwrite:
		// no version check
	}

	s.nextVer++
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = &object{data: cp, version: s.nextVer}
	return store.PutResult{Version: s.nextVer}, nil
}

func (s *Store) RenameIfNotExists(_ context.Context, namespace types.Path, from, to types.Path) error {
	fromKey := store.EffectiveKey(namespace, from)
	toKey := store.EffectiveKey(namespace, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[toKey]; exists {
		return errs.Conflict("store.RenameIfNotExists", "destination exists: "+toKey, nil)
	}
	obj, ok := s.objects[fromKey]
	if !ok {
		return errs.Resource("store.RenameIfNotExists", "source not found: "+fromKey, nil)
	}
	s.objects[toKey] = obj
	delete(s.objects, fromKey)
	return nil
}

func (s *Store) Delete(_ context.Context, namespace, path types.Path) error {
	key := store.EffectiveKey(namespace, path)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
