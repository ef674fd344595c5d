// Package store implements the C2 object store façade: namespaced
// get/list/put/rename-if-absent/delete over a pluggable object-storage
// backend, with optional envelope encryption and metadata layering.
package store

import (
	"context"
	"strings"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// MaxInMemoryObject is the largest object the façade will buffer in memory;
// writes above this must be rejected or chunked by the caller (spec.md §4.2).
const MaxInMemoryObject = 2 << 20 // 2 MiB

// DefaultChunkSize is the backend's default chunking unit for large objects.
const DefaultChunkSize = 256 << 10 // 256 KiB

// PutMode selects the optimistic-concurrency discipline of a write.
type PutMode struct {
	kind    putKind
	version types.UpdateVersion
}

type putKind int

const (
	KindCreate putKind = iota
	KindOverwrite
	KindUpdate
)

func Create() PutMode                     { return PutMode{kind: KindCreate} }
func Overwrite() PutMode                  { return PutMode{kind: KindOverwrite} }
func Update(v types.UpdateVersion) PutMode { return PutMode{kind: KindUpdate, version: v} }

// Kind reports which concurrency discipline this mode selects.
func (m PutMode) Kind() putKind { return m.kind }

// Version returns the version to compare against for KindUpdate.
func (m PutMode) Version() types.UpdateVersion { return m.version }

// Meta is the metadata attached to a stored object.
type Meta struct {
	Path     string
	MimeType string
	Size     int64
	Version  types.UpdateVersion
	Checksum [32]byte
}

// PutResult is returned by a successful Put.
type PutResult struct {
	Version types.UpdateVersion
}

// Store is the backend-agnostic object store contract. Implementations:
// store/memory (tests, single-process engines) and store/s3 (the default
// production backend).
type Store interface {
	Get(ctx context.Context, namespace, path types.Path) ([]byte, Meta, error)
	List(ctx context.Context, namespace types.Path, prefix types.Path, offset string) ([]Meta, error)
	Put(ctx context.Context, namespace, path types.Path, mode PutMode, data []byte) (PutResult, error)
	RenameIfNotExists(ctx context.Context, namespace types.Path, from, to types.Path) error
	Delete(ctx context.Context, namespace, path types.Path) error
}

// EffectiveKey computes the join(lowercase(namespace), lowercase(path))
// effective key used by every backend, per spec.md §4.2.
func EffectiveKey(namespace, path types.Path) string {
	return types.Join(namespace.String(), path.String()).String()
}

// SplitEffectiveKey reverses EffectiveKey for listing results, given the
// namespace prefix that was queried.
func SplitEffectiveKey(namespace types.Path, effectiveKey string) types.Path {
	ns := strings.ToLower(namespace.String())
	rel := strings.TrimPrefix(effectiveKey, ns)
	rel = strings.TrimPrefix(rel, "/")
	return types.Path(rel)
}

func checkSize(op string, data []byte) error {
	if len(data) > MaxInMemoryObject {
		return errs.Resource(op, "object exceeds 2 MiB in-memory limit; split or stream it", nil)
	}
	return nil
}
