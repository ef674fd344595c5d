// Package registry provides the generic name-keyed collection used by both
// the tool registry and the agent registry.
package registry

import (
	"regexp"
	"sync"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// NamePattern is the name regex shared by tools, agents, and function
// definitions: lowercase alphanumerics and underscores, 1-64 chars.
var NamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidName reports whether name satisfies NamePattern.
func ValidName(name string) bool {
	return NamePattern.MatchString(name)
}

// Registry is the minimal contract both Tool and Agent registries expose.
type Registry[T any] interface {
	Add(name string, item T) error
	Get(name string) (T, bool)
	Contains(name string) bool
	List() []T
	Names() []string
	Remove(name string) error
	Count() int
}

// Base is a name-keyed, concurrency-safe map with duplicate and name-format
// rejection. It is immutable from the outside after Add calls stop (per
// spec.md: "the agent and tool registries are immutable after build").
type Base[T any] struct {
	mu    sync.RWMutex
	op    string
	items map[string]T
}

func New[T any](op string) *Base[T] {
	return &Base[T]{op: op, items: make(map[string]T)}
}

func (r *Base[T]) Add(name string, item T) error {
	if !ValidName(name) {
		return errs.Validation(r.op, "invalid name: "+name, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		return errs.Validation(r.op, "duplicate name: "+name, nil)
	}
	r.items[name] = item
	return nil
}

func (r *Base[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

func (r *Base[T]) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

func (r *Base[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.items))
	for _, v := range r.items {
		out = append(out, v)
	}
	return out
}

func (r *Base[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	return out
}

func (r *Base[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; !ok {
		return errs.Resource(r.op, "not found: "+name, nil)
	}
	delete(r.items, name)
	return nil
}

func (r *Base[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
