// Package backendtest provides in-memory backend fakes for engine tests.
//
// The fakes record every mutating call so tests can assert idempotence,
// locator dedup, and unknown-kind safety without a network.
package backendtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mediasweep/mediasweep/pkg/backend"
)

// FakePinBackend is an in-memory backend.PinBackend.
type FakePinBackend struct {
	mu     sync.Mutex
	pinned map[string]bool

	// FailWith, when set for a hash, is returned by Unpin and IsPinned.
	FailWith map[string]error

	// UnpinCalls records every Unpin invocation in order.
	UnpinCalls []string
}

// NewFakePinBackend creates a fake pin backend with the given pinned hashes.
func NewFakePinBackend(hashes ...string) *FakePinBackend {
	pinned := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		pinned[h] = true
	}
	return &FakePinBackend{
		pinned:   pinned,
		FailWith: make(map[string]error),
	}
}

func (f *FakePinBackend) IsPinned(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailWith[hash]; err != nil {
		return false, err
	}
	return f.pinned[hash], nil
}

func (f *FakePinBackend) Unpin(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.UnpinCalls = append(f.UnpinCalls, hash)

	if err := f.FailWith[hash]; err != nil {
		return false, err
	}

	if !f.pinned[hash] {
		return false, nil
	}
	delete(f.pinned, hash)
	return true, nil
}

// Pinned reports whether a hash is still pinned.
func (f *FakePinBackend) Pinned(hash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinned[hash]
}

// UnpinCount returns how many times Unpin was called for a hash.
func (f *FakePinBackend) UnpinCount(hash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, h := range f.UnpinCalls {
		if h == hash {
			n++
		}
	}
	return n
}

// FakeObjectBackend is an in-memory backend.ObjectBackend keyed like S3.
type FakeObjectBackend struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailWith, when set for a key or prefix, is returned by mutating calls.
	FailWith map[string]error

	// DeleteCalls and PrefixCalls record every mutating invocation in order.
	DeleteCalls []string
	PrefixCalls []string
}

// NewFakeObjectBackend creates a fake object backend with the given keys.
func NewFakeObjectBackend(keys ...string) *FakeObjectBackend {
	objects := make(map[string][]byte, len(keys))
	for _, k := range keys {
		objects[k] = []byte("x")
	}
	return &FakeObjectBackend{
		objects:  objects,
		FailWith: make(map[string]error),
	}
}

func (f *FakeObjectBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailWith[key]; err != nil {
		return false, err
	}
	_, ok := f.objects[key]
	return ok, nil
}

func (f *FakeObjectBackend) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls = append(f.DeleteCalls, key)

	if err := f.FailWith[key]; err != nil {
		return false, err
	}

	if _, ok := f.objects[key]; !ok {
		return false, nil
	}
	delete(f.objects, key)
	return true, nil
}

func (f *FakeObjectBackend) DeleteByPrefix(ctx context.Context, prefix string) (backend.PrefixResult, error) {
	var result backend.PrefixResult

	if err := ctx.Err(); err != nil {
		return result, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.PrefixCalls = append(f.PrefixCalls, prefix)

	if err := f.FailWith[prefix]; err != nil {
		return result, err
	}

	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
			result.Deleted++
		}
	}
	return result, nil
}

func (f *FakeObjectBackend) List(ctx context.Context, prefix string, maxKeys int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
			if maxKeys > 0 && len(keys) >= maxKeys {
				break
			}
		}
	}
	return keys, nil
}

// Has reports whether a key is still stored.
func (f *FakeObjectBackend) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// PrefixCount returns how many times DeleteByPrefix was called for a prefix.
func (f *FakeObjectBackend) PrefixCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, p := range f.PrefixCalls {
		if p == prefix {
			n++
		}
	}
	return n
}

// MutationCount returns the total number of mutating backend calls.
func (f *FakeObjectBackend) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.DeleteCalls) + len(f.PrefixCalls)
}

// Err builds a deterministic injected failure for a locator.
func Err(locator string) error {
	return fmt.Errorf("injected failure for %s", locator)
}
