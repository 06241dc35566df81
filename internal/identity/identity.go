// Package identity correlates federation object handles, DIS entity
// identifiers and application actor ids for live objects.
package identity

import (
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

type record struct {
	handle    hla.ObjectHandle
	hasHandle bool
	entity    rpr.EntityIdentifier
	hasEntity bool
	actor     core.ActorID
	mapping   *mapping.ObjectToActor
}

// Table is an arena of identity records, one per logical object, with
// secondary indices by handle, entity id and actor id. Every key belongs
// to at most one record and every record holds at most one key of each
// kind. Table is not safe for concurrent use.
type Table struct {
	next     int
	records  map[int]*record
	byHandle map[hla.ObjectHandle]int
	byEntity map[rpr.EntityIdentifier]int
	byActor  map[core.ActorID]int
}

// New creates an empty table.
func New() *Table {
	return &Table{
		records:  make(map[int]*record),
		byHandle: make(map[hla.ObjectHandle]int),
		byEntity: make(map[rpr.EntityIdentifier]int),
		byActor:  make(map[core.ActorID]int),
	}
}

// PutHandle binds an object handle to an actor id. It returns false and
// changes nothing if either side is bound to a different partner.
func (t *Table) PutHandle(h hla.ObjectHandle, actor core.ActorID) bool {
	if actor.IsZero() {
		return false
	}
	hk, hok := t.byHandle[h]
	ak, aok := t.byActor[actor]
	if hok && t.records[hk].actor != "" && t.records[hk].actor != actor {
		return false
	}
	if aok && t.records[ak].hasHandle && t.records[ak].handle != h {
		return false
	}

	switch {
	case hok && aok:
		if hk != ak {
			return t.merge(ak, hk)
		}
	case hok:
		t.records[hk].actor = actor
		t.byActor[actor] = hk
	case aok:
		t.setHandle(ak, h)
	default:
		k := t.alloc(&record{actor: actor})
		t.byActor[actor] = k
		t.setHandle(k, h)
	}
	return true
}

// PutEntityID binds a DIS entity identifier to an actor id. It returns
// false and changes nothing if either side is bound to a different partner.
func (t *Table) PutEntityID(id rpr.EntityIdentifier, actor core.ActorID) bool {
	if actor.IsZero() {
		return false
	}
	ek, eok := t.byEntity[id]
	ak, aok := t.byActor[actor]
	if eok && t.records[ek].actor != actor {
		return false
	}
	if aok && t.records[ak].hasEntity && t.records[ak].entity != id {
		return false
	}
	if eok {
		return true
	}
	if !aok {
		ak = t.alloc(&record{actor: actor})
		t.byActor[actor] = ak
	}
	r := t.records[ak]
	r.entity, r.hasEntity = id, true
	t.byEntity[id] = ak
	return true
}

// PutMapping binds the active object mapping to a handle. It returns false
// if the handle already has a different mapping.
func (t *Table) PutMapping(h hla.ObjectHandle, m *mapping.ObjectToActor) bool {
	k, ok := t.byHandle[h]
	if !ok {
		k = t.alloc(&record{})
		t.setHandle(k, h)
	}
	r := t.records[k]
	if r.mapping != nil && r.mapping != m {
		return false
	}
	r.mapping = m
	return true
}

// ActorForHandle returns the actor bound to a handle.
func (t *Table) ActorForHandle(h hla.ObjectHandle) (core.ActorID, bool) {
	if r := t.handleRecord(h); r != nil && r.actor != "" {
		return r.actor, true
	}
	return "", false
}

// HandleForActor returns the handle bound to an actor.
func (t *Table) HandleForActor(actor core.ActorID) (hla.ObjectHandle, bool) {
	if r := t.actorRecord(actor); r != nil && r.hasHandle {
		return r.handle, true
	}
	return 0, false
}

// ActorForEntity returns the actor bound to an entity identifier.
func (t *Table) ActorForEntity(id rpr.EntityIdentifier) (core.ActorID, bool) {
	k, ok := t.byEntity[id]
	if !ok {
		return "", false
	}
	return t.records[k].actor, true
}

// EntityForActor returns the entity identifier bound to an actor.
func (t *Table) EntityForActor(actor core.ActorID) (rpr.EntityIdentifier, bool) {
	if r := t.actorRecord(actor); r != nil && r.hasEntity {
		return r.entity, true
	}
	return rpr.EntityIdentifier{}, false
}

// MappingForHandle returns the active mapping of a handle, or nil.
func (t *Table) MappingForHandle(h hla.ObjectHandle) *mapping.ObjectToActor {
	if r := t.handleRecord(h); r != nil {
		return r.mapping
	}
	return nil
}

// RemoveHandle removes the object bound to h from every index.
func (t *Table) RemoveHandle(h hla.ObjectHandle) {
	if k, ok := t.byHandle[h]; ok {
		t.drop(k)
	}
}

// RemoveEntityID removes the object bound to id from every index.
func (t *Table) RemoveEntityID(id rpr.EntityIdentifier) {
	if k, ok := t.byEntity[id]; ok {
		t.drop(k)
	}
}

// RemoveActor removes the object bound to actor from every index.
func (t *Table) RemoveActor(actor core.ActorID) {
	if k, ok := t.byActor[actor]; ok {
		t.drop(k)
	}
}

// Clear removes every record.
func (t *Table) Clear() {
	clear(t.records)
	clear(t.byHandle)
	clear(t.byEntity)
	clear(t.byActor)
}

// Len returns the number of live records.
func (t *Table) Len() int {
	return len(t.records)
}

func (t *Table) alloc(r *record) int {
	t.next++
	t.records[t.next] = r
	return t.next
}

func (t *Table) setHandle(k int, h hla.ObjectHandle) {
	r := t.records[k]
	r.handle, r.hasHandle = h, true
	t.byHandle[h] = k
}

// merge folds the handle-only record src into dst. Callers have checked
// that dst carries no handle.
func (t *Table) merge(dst, src int) bool {
	d, s := t.records[dst], t.records[src]
	if s.hasEntity || (d.mapping != nil && s.mapping != nil && d.mapping != s.mapping) {
		return false
	}
	if d.mapping == nil {
		d.mapping = s.mapping
	}
	delete(t.records, src)
	t.setHandle(dst, s.handle)
	return true
}

func (t *Table) drop(k int) {
	r, ok := t.records[k]
	if !ok {
		return
	}
	if r.hasHandle {
		delete(t.byHandle, r.handle)
	}
	if r.hasEntity {
		delete(t.byEntity, r.entity)
	}
	if r.actor != "" {
		delete(t.byActor, r.actor)
	}
	delete(t.records, k)
}

func (t *Table) handleRecord(h hla.ObjectHandle) *record {
	if k, ok := t.byHandle[h]; ok {
		return t.records[k]
	}
	return nil
}

func (t *Table) actorRecord(actor core.ActorID) *record {
	if k, ok := t.byActor[actor]; ok {
		return t.records[k]
	}
	return nil
}
