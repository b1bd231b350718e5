// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"
	"sync"

	"github.com/gogpu/tiledcam"
)

// Factory builds a backend instance from a configuration.
type Factory func(cfg *Config) (tiledcam.Backend, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first constructible wins).
	// The native sensor renders the whole batch in one call; the
	// scene-description path is the generic fallback.
	backendPriority = []string{BackendSensor, BackendScenegraph}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in strategy packages.
// If a backend with the same name is already registered, it is
// replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// New builds the named backend from cfg.
func New(name string, cfg *Config) (tiledcam.Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	return factory(cfg)
}

// Default builds the best backend the configuration can support, in
// priority order. A strategy whose driver is missing from cfg is
// skipped, not an error; only a fully empty configuration fails.
func Default(cfg *Config) (tiledcam.Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var lastErr error
	for _, name := range backendPriority {
		factory, ok := backends[name]
		if !ok {
			continue
		}
		b, err := factory(cfg)
		if err != nil {
			lastErr = err
			continue
		}
		return b, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrBackendNotAvailable
}
