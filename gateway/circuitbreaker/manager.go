// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package circuitbreaker

import (
	"log"
	"os"
	"sort"
	"sync"
)

// Manager is a per-process registry of breakers, one per routing target.
// Breakers are created lazily on first use and persist for the process
// lifetime. The manager is constructed once at startup and injected into
// every router instance; there is no package-level singleton.
type Manager struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	defaults  Config
	overrides map[string]Config
	logger    *log.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the manager.
func WithManagerLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a breaker registry with the given default config.
func NewManager(defaults Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		breakers:  make(map[string]*Breaker),
		defaults:  defaults.withDefaults(),
		overrides: make(map[string]Config),
		logger:    log.New(os.Stdout, "[BREAKER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure sets a per-target config override. It applies on the target's
// next lazy creation; an already-created breaker keeps its config.
func (m *Manager) Configure(target string, config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[target] = config.withDefaults()
}

// Get returns the breaker for target, creating it lazily.
func (m *Manager) Get(target string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[target]; ok {
		return b
	}

	config := m.defaults
	if override, ok := m.overrides[target]; ok {
		config = override
	}

	b := New(target, config)
	m.breakers[target] = b
	m.logger.Printf("Created breaker for target %q (threshold=%d recovery=%s timeout=%s)",
		target, config.FailureThreshold, config.RecoveryTimeout, config.CallTimeout)
	return b
}

// Reset resets the breaker for target if it exists. Returns false otherwise.
func (m *Manager) Reset(target string) bool {
	m.mu.Lock()
	b, ok := m.breakers[target]
	m.mu.Unlock()

	if !ok {
		return false
	}
	b.Reset()
	m.logger.Printf("Reset breaker for target %q", target)
	return true
}

// Snapshots returns the state of every known breaker, sorted by target.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		breakers = append(breakers, b)
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Target < snaps[j].Target })
	return snaps
}
