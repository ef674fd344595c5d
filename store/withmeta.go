package store

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// metaSidecarPath is the well-known object holding the listing index for a
// namespace, kept in the same bucket as the data it indexes.
const metaSidecarPath = "_meta_index.cbor"

// WithMeta wraps a Store with a sidecar index of
// {path -> {size, version, checksum}} so List is served from the index
// without a backend scan, per spec.md §4.2. Put takes no mime type, so the
// index leaves MimeType empty.
type WithMeta struct {
	inner Store

	mu      sync.Mutex
	indexes map[string]map[string]Meta // namespace -> path -> meta
}

func NewWithMeta(inner Store) *WithMeta {
	return &WithMeta{inner: inner, indexes: make(map[string]map[string]Meta)}
}

var _ Store = (*WithMeta)(nil)

func (w *WithMeta) loadIndex(ctx context.Context, namespace types.Path) (map[string]Meta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ns := namespace.String()
	if idx, ok := w.indexes[ns]; ok {
		return idx, nil
	}

	idx := make(map[string]Meta)
	data, _, err := w.inner.Get(ctx, namespace, types.Path(metaSidecarPath))
	if err == nil {
		if uerr := cbor.Unmarshal(data, &idx); uerr != nil {
			return nil, errs.Internal("store.WithMeta", "sidecar index corrupt", uerr)
		}
	}
	w.indexes[ns] = idx
	return idx, nil
}

func (w *WithMeta) saveIndex(ctx context.Context, namespace types.Path, idx map[string]Meta) error {
	b, err := cbor.Marshal(idx)
	if err != nil {
		return errs.Internal("store.WithMeta", "sidecar index encode failed", err)
	}
	_, err = w.inner.Put(ctx, namespace, types.Path(metaSidecarPath), Overwrite(), b)
	if err != nil {
		return errs.Internal("store.WithMeta", "sidecar index write failed", err)
	}
	return nil
}

func (w *WithMeta) Get(ctx context.Context, namespace, path types.Path) ([]byte, Meta, error) {
	return w.inner.Get(ctx, namespace, path)
}

func (w *WithMeta) List(ctx context.Context, namespace types.Path, prefix types.Path, offset string) ([]Meta, error) {
	idx, err := w.loadIndex(ctx, namespace)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Meta
	for p, m := range idx {
		if len(prefix) > 0 && len(p) < len(prefix) {
			continue
		}
		if string(prefix) != "" && p[:len(prefix)] != string(prefix) {
			continue
		}
		if p <= offset {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (w *WithMeta) Put(ctx context.Context, namespace, path types.Path, mode PutMode, data []byte) (PutResult, error) {
	res, err := w.inner.Put(ctx, namespace, path, mode, data)
	if err != nil {
		return res, err
	}
	idx, err := w.loadIndex(ctx, namespace)
	if err != nil {
		return res, err
	}
	w.mu.Lock()
	idx[path.String()] = Meta{Path: path.String(), Size: int64(len(data)), Version: res.Version, Checksum: sha256.Sum256(data)}
	w.mu.Unlock()
	if err := w.saveIndex(ctx, namespace, idx); err != nil {
		return res, err
	}
	return res, nil
}

func (w *WithMeta) RenameIfNotExists(ctx context.Context, namespace types.Path, from, to types.Path) error {
	if err := w.inner.RenameIfNotExists(ctx, namespace, from, to); err != nil {
		return err
	}
	idx, err := w.loadIndex(ctx, namespace)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if m, ok := idx[from.String()]; ok {
		idx[to.String()] = m
		delete(idx, from.String())
	}
	w.mu.Unlock()
	return w.saveIndex(ctx, namespace, idx)
}

func (w *WithMeta) Delete(ctx context.Context, namespace, path types.Path) error {
	if err := w.inner.Delete(ctx, namespace, path); err != nil {
		return err
	}
	idx, err := w.loadIndex(ctx, namespace)
	if err != nil {
		return err
	}
	w.mu.Lock()
	delete(idx, path.String())
	w.mu.Unlock()
	return w.saveIndex(ctx, namespace, idx)
}
