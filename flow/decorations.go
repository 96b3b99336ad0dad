package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSuchDecoration is returned when a decoration key was never attached.
// Distinct from a present key holding nil: callers that expect a decoration
// after a given pass treat this error as a logic bug in that pass.
var ErrNoSuchDecoration = errors.New("no such decoration")

// PersistentPrefix marks decoration keys that survive graph rebuilds within
// the same method body. The builder carries them from the previous graph's
// nodes by instruction identity.
const PersistentPrefix = "graft.persistent."

// Decorations is the side table of named metadata attached to flow nodes and
// injection nodes after the fact. Each key implies a known value shape by
// convention at its call site; there is no type dispatch here.
type Decorations struct {
	m map[string]any
}

// Decorate attaches value under key, replacing any previous value.
func (d *Decorations) Decorate(key string, value any) {
	if d.m == nil {
		d.m = make(map[string]any)
	}
	d.m[key] = value
}

// HasDecoration reports whether key is attached. A stored nil still counts.
func (d *Decorations) HasDecoration(key string) bool {
	_, ok := d.m[key]
	return ok
}

// GetDecoration returns the value attached under key, or ErrNoSuchDecoration
// naming the key.
func (d *Decorations) GetDecoration(key string) (any, error) {
	v, ok := d.m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchDecoration, key)
	}
	return v, nil
}

// persistent returns the subset of decorations whose keys carry
// PersistentPrefix.
func (d *Decorations) persistent() map[string]any {
	var out map[string]any
	for k, v := range d.m {
		if strings.HasPrefix(k, PersistentPrefix) {
			if out == nil {
				out = make(map[string]any)
			}
			out[k] = v
		}
	}
	return out
}
