package binder

import (
	"sync"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/schema"
)

// liveResolver adapts the workspace's current schema snapshot into a
// transaction.FieldOrderResolver whose view can be swapped in place as the
// schema reloads, so the single instance handed to store.Open at workspace
// open time stays valid across the workspace's lifetime.
//
// Before any config entity exists there is no schema yet; KnownField then
// reports every field known and FieldOrder is unavailable, matching the
// bootstrapping allowance in transaction.FieldOrderResolver's doc comment.
type liveResolver struct {
	mu     sync.RWMutex
	schema *schema.Schema
	typeOf func(ref string) (string, bool)
}

func (r *liveResolver) setSchema(s *schema.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schema = s
}

func (r *liveResolver) current() *schema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schema
}

func (r *liveResolver) KnownField(entityType, field string) bool {
	s := r.current()
	if s == nil {
		return true
	}
	return s.KnownField(entityType, field)
}

func (r *liveResolver) FieldOrder(entityType string) ([]string, errors.E) {
	s := r.current()
	if s == nil {
		return nil, errors.WithStack(schema.ErrUnknownType)
	}
	return s.FieldOrder(entityType)
}

// EntityType resolves ref's type: from the changeset's own "type" field
// when it sets one (always true on create), otherwise by consulting the
// workspace's materialized lookup (an update targeting an existing
// entity).
func (r *liveResolver) EntityType(ref string, cs changeset.FieldChangeset) (string, bool) {
	if vc, ok := cs["type"]; ok {
		if set, ok := vc.(changeset.Set); ok {
			if name, ok := set.New.(string); ok && name != "" {
				return name, true
			}
		}
	}
	if r.typeOf == nil {
		return "", false
	}
	return r.typeOf(ref)
}
