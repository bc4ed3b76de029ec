// Package registry resolves named component constructors. Hardware
// backends register under a name and are instantiated from their raw
// configuration section.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

type Creator[C any, P any] func(config json.RawMessage, provider P) (C, error)

type Registry[C any, P any] struct {
	creators map[string]Creator[C, P]
	provider P
}

func New[C any, P any](provider P) *Registry[C, P] {
	return &Registry[C, P]{
		provider: provider,
		creators: make(map[string]Creator[C, P]),
	}
}

func (r *Registry[C, P]) Register(name string, creator Creator[C, P]) {
	if _, ok := r.creators[name]; ok {
		panic(fmt.Sprintf("component already registered: %s", name))
	}
	r.creators[name] = creator
}

func (r *Registry[C, P]) New(name string, config json.RawMessage) (C, error) {
	creator, ok := r.creators[name]
	if !ok {
		var zero C
		return zero, fmt.Errorf("component not found: %s (available: %v)", name, r.Names())
	}
	return creator(config, r.provider)
}

func (r *Registry[C, P]) Names() []string {
	names := make([]string, 0, len(r.creators))
	for name := range r.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
