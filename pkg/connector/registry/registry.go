// Package registry maps source names to factories. Sources register
// themselves from init functions.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/logger"
)

// SourceFactory creates a source bound to env
type SourceFactory func(env *core.Env) (core.Source, error)

// SourceInfo describes a registered source
type SourceInfo struct {
	Name        string   `json:"name"`
	Collection  string   `json:"collection"`
	Description string   `json:"description"`
	URLs        []string `json:"urls"`
}

type entry struct {
	factory SourceFactory
	info    SourceInfo
}

// Registry manages source registration and instantiation
type Registry struct {
	sources map[string]entry
	mu      sync.RWMutex
	logger  *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]entry),
		logger:  logger.Get().With(zap.String("component", "source_registry")),
	}
}

// RegisterSource registers a source factory under info.Name
func (r *Registry) RegisterSource(info SourceInfo, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "source name is required")
	}
	if _, exists := r.sources[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source %s already registered", info.Name))
	}

	r.sources[info.Name] = entry{factory: factory, info: info}
	r.logger.Debug("source registered", zap.String("name", info.Name))
	return nil
}

// CreateSource instantiates the named source
func (r *Registry) CreateSource(name string, env *core.Env) (core.Source, error) {
	r.mu.RLock()
	e, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source %s not found", name)).
			WithDetail("available", r.ListSources())
	}

	source, err := e.factory(env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source %s", name))
	}
	return source, nil
}

// ListSources returns registered source names, those named in Order
// first and the rest alphabetically.
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := rank(names[i]), rank(names[j])
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

// Info returns the description of a registered source
func (r *Registry) Info(name string) (SourceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sources[name]
	return e.info, ok
}

// HasSource checks if a source is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// Order is the default load order of the built-in sources
var Order = []string{"gudid", "510k", "pma"}

func rank(name string) int {
	for i, n := range Order {
		if n == name {
			return i
		}
	}
	return len(Order)
}

// RegisterSource registers a source in the global registry
func RegisterSource(info SourceInfo, factory SourceFactory) error {
	return globalRegistry.RegisterSource(info, factory)
}

// CreateSource creates a source from the global registry
func CreateSource(name string, env *core.Env) (core.Source, error) {
	return globalRegistry.CreateSource(name, env)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// Info returns source information from the global registry
func Info(name string) (SourceInfo, bool) {
	return globalRegistry.Info(name)
}

// HasSource checks if a source is registered in the global registry
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}
