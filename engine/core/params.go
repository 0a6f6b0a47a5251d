package core

import (
	"fmt"

	"dario.cat/mergo"
)

// Params is the untyped option map attached to triggers, actions and
// reactions, and the value shape carried inside job payloads. Values are
// JSON scalars, lists and nested maps; numbers arrive as float64 after a
// round trip through the queue.
type Params map[string]any

func NewParams(m map[string]any) Params {
	if m == nil {
		return Params{}
	}
	return Params(m)
}

// AsMap returns a shallow copy as a plain map. Mutating the copy does not
// affect p.
func (p *Params) AsMap() map[string]any {
	if p == nil || *p == nil {
		return nil
	}
	out := make(map[string]any, len(*p))
	for k, v := range *p {
		out[k] = v
	}
	return out
}

func (p *Params) Prop(key string) any {
	if p == nil || *p == nil {
		return nil
	}
	return (*p)[key]
}

func (p *Params) Set(key string, value any) {
	if *p == nil {
		*p = Params{}
	}
	(*p)[key] = value
}

func (p Params) Clone() (Params, error) {
	if p == nil {
		return nil, nil
	}
	return DeepCopy(p)
}

// Merge returns a new Params combining p and overlay, descending into nested
// maps, with overlay values winning on conflict. Neither input is mutated.
func (p Params) Merge(overlay Params) (Params, error) {
	base, err := p.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone params: %w", err)
	}
	if base == nil {
		base = Params{}
	}
	if err := mergo.Merge(&base, overlay, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge params: %w", err)
	}
	return base, nil
}

// Overlay returns a copy of p with every overlay entry set, replacing whole
// values on key conflict. Job assembly uses this top-level-only form so a
// reaction option always replaces the event field of the same name instead
// of being merged into it.
func (p Params) Overlay(overlay Params) Params {
	out := make(Params, len(p)+len(overlay))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
