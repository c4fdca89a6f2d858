package odb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GitDataAI/git-inner/hash"
)

// MemRegistry is an in-memory Registry, the default backend for tests and
// single-process deployments.
type MemRegistry struct {
	mu    sync.RWMutex
	repos map[string]RepoInfo
	now   func() time.Time
}

var _ Registry = (*MemRegistry)(nil)

// NewMemRegistry returns an empty in-memory repository registry. now is
// used to stamp CreatedAt and must be supplied by the caller, since this
// module never calls time.Now() itself (scripted-workflow determinism).
func NewMemRegistry(now func() time.Time) *MemRegistry {
	return &MemRegistry{repos: make(map[string]RepoInfo), now: now}
}

func (r *MemRegistry) Info(_ context.Context, name string) (RepoInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.repos[name]
	if !ok {
		return RepoInfo{}, fmt.Errorf("%w: %s", ErrRepoNotFound, name)
	}
	return info, nil
}

func (r *MemRegistry) Create(_ context.Context, name string, visibility Visibility) (RepoInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.repos[name]; ok {
		return RepoInfo{}, fmt.Errorf("%w: %s", ErrRepoAlreadyExists, name)
	}

	info := RepoInfo{
		Name:        name,
		Visibility:  visibility,
		HashVersion: hash.SHA1,
		CreatedAt:   r.now(),
		DefaultRef:  "refs/heads/main",
	}
	r.repos[name] = info
	return info, nil
}

func (r *MemRegistry) SetVisibility(_ context.Context, name string, visibility Visibility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.repos[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, name)
	}
	info.Visibility = visibility
	r.repos[name] = info
	return nil
}

func (r *MemRegistry) List(_ context.Context) ([]RepoInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RepoInfo, 0, len(r.repos))
	for _, info := range r.repos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
