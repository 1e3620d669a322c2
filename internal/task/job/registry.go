package job

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Resolver materializes job instances on demand.
type Resolver interface {
	// Resolve returns a fresh instance of the job type t.
	Resolve(t reflect.Type) (Job, error)
	// ResolveKind returns a fresh instance of the job registered under kind.
	ResolveKind(kind string) (Job, error)
}

// Registry is a Resolver populated with constructors.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]func() Job
	byKind map[string]func() Job
}

func NewRegistry() *Registry {
	return &Registry{
		byType: map[reflect.Type]func() Job{},
		byKind: map[string]func() Job{},
	}
}

// Provide registers the constructor for job type T, replacing any previous one.
func Provide[T Job](r *Registry, fn func() T) {
	if r == nil || fn == nil {
		return
	}
	r.mu.Lock()
	r.byType[reflect.TypeFor[T]()] = func() Job { return fn() }
	r.mu.Unlock()
}

// ProvideKind registers a constructor under a string kind (used by config).
func (r *Registry) ProvideKind(kind string, fn func() Job) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if r == nil || fn == nil || kind == "" {
		return
	}
	r.mu.Lock()
	r.byKind[kind] = fn
	r.mu.Unlock()
}

func (r *Registry) Resolve(t reflect.Type) (Job, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %v (no registry)", ErrUnresolvedJobType, t)
	}
	r.mu.RLock()
	fn := r.byType[t]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedJobType, t)
	}
	j := fn()
	if j == nil {
		return nil, fmt.Errorf("%w: %v (constructor returned nil)", ErrUnresolvedJobType, t)
	}
	return j, nil
}

func (r *Registry) ResolveKind(kind string) (Job, error) {
	key := strings.ToLower(strings.TrimSpace(kind))
	if r == nil {
		return nil, fmt.Errorf("%w: kind %q (no registry)", ErrUnresolvedJobType, kind)
	}
	r.mu.RLock()
	fn := r.byKind[key]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: kind %q", ErrUnresolvedJobType, kind)
	}
	j := fn()
	if j == nil {
		return nil, fmt.Errorf("%w: kind %q (constructor returned nil)", ErrUnresolvedJobType, kind)
	}
	return j, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Resolve returns a fresh T from r.
func Resolve[T Job](r Resolver) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	if r == nil {
		return zero, fmt.Errorf("%w: %v (no resolver)", ErrUnresolvedJobType, t)
	}
	j, err := r.Resolve(t)
	if err != nil {
		return zero, err
	}
	v, ok := j.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %v resolved to %T", ErrUnresolvedJobType, t, j)
	}
	return v, nil
}
