package mapping

import (
	"log/slog"
	"slices"

	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

// Registry indexes object and interaction mappings. It is populated before
// joining and read from the federation callback thread; it is not locked.
type Registry struct {
	logger *slog.Logger

	objects []*ObjectToActor
	byClass map[string][]*ObjectToActor
	byActor map[core.ActorType]*ObjectToActor

	interactions  []*InteractionToMessage
	byInteraction map[string]*InteractionToMessage
	byMessage     map[core.MessageType]*InteractionToMessage
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:        logger,
		byClass:       make(map[string][]*ObjectToActor),
		byActor:       make(map[core.ActorType]*ObjectToActor),
		byInteraction: make(map[string]*InteractionToMessage),
		byMessage:     make(map[core.MessageType]*InteractionToMessage),
	}
}

// RegisterObjectMapping adds m. Only one mapping per actor type may be used
// for outbound updates; a second one is forced remote only and the method
// reports true.
func (r *Registry) RegisterObjectMapping(m *ObjectToActor) (forcedRemoteOnly bool) {
	if !m.RemoteOnly {
		if existing, ok := r.byActor[m.ActorType]; ok {
			r.logger.Warn("actor type already has a local mapping, forcing remote only",
				"actorType", m.ActorType.String(),
				"objectClass", m.ObjectClassName,
				"existingClass", existing.ObjectClassName)
			m.RemoteOnly = true
			forcedRemoteOnly = true
		} else {
			r.byActor[m.ActorType] = m
		}
	}
	r.objects = append(r.objects, m)
	r.byClass[m.ObjectClassName] = append(r.byClass[m.ObjectClassName], m)
	return forcedRemoteOnly
}

// RegisterInteractionMapping adds m, replacing any mapping for the same
// interaction class or message type.
func (r *Registry) RegisterInteractionMapping(m *InteractionToMessage) {
	if old, ok := r.byInteraction[m.InteractionClassName]; ok {
		r.removeInteraction(old)
	}
	if old, ok := r.byMessage[m.MessageType]; ok {
		r.removeInteraction(old)
	}
	r.interactions = append(r.interactions, m)
	r.byInteraction[m.InteractionClassName] = m
	r.byMessage[m.MessageType] = m
}

// ObjectMapping returns the mapping for a class whose DIS type equals et
// (nil meaning none configured), falling back to the best ranked match.
func (r *Registry) ObjectMapping(className string, et *rpr.EntityType) *ObjectToActor {
	for _, m := range r.byClass[className] {
		if (m.DISType == nil && et == nil) || (m.DISType != nil && et != nil && *m.DISType == *et) {
			return m
		}
	}
	if et == nil {
		return nil
	}
	m, _ := r.BestObjectMapping(className, *et)
	return m
}

// BestObjectMapping ranks every mapping of the class against the actual
// entity type and returns the highest non-negative rank. Equal ranks keep
// the mapping registered first.
func (r *Registry) BestObjectMapping(className string, actual rpr.EntityType) (*ObjectToActor, int) {
	var best *ObjectToActor
	bestRank := -1
	for _, m := range r.byClass[className] {
		rank := m.EntityType().RankMatch(actual)
		if rank > bestRank {
			best, bestRank = m, rank
		}
	}
	return best, bestRank
}

// ObjectMappingsForClass returns the mappings of a class in registration order.
func (r *Registry) ObjectMappingsForClass(className string) []*ObjectToActor {
	return r.byClass[className]
}

// NeedsEntityType reports whether selecting a mapping for the class
// requires the object's entity type.
func (r *Registry) NeedsEntityType(className string) bool {
	ms := r.byClass[className]
	if len(ms) > 1 {
		return true
	}
	return len(ms) == 1 && ms[0].DISType != nil
}

// ActorMapping returns the local mapping for an actor type.
func (r *Registry) ActorMapping(t core.ActorType) *ObjectToActor {
	return r.byActor[t]
}

// InteractionMapping returns the mapping for an interaction class.
func (r *Registry) InteractionMapping(className string) *InteractionToMessage {
	return r.byInteraction[className]
}

// MessageMapping returns the mapping for a message type.
func (r *Registry) MessageMapping(t core.MessageType) *InteractionToMessage {
	return r.byMessage[t]
}

// UnregisterActorMapping removes the local mapping of an actor type.
func (r *Registry) UnregisterActorMapping(t core.ActorType) {
	m, ok := r.byActor[t]
	if !ok {
		return
	}
	r.removeObject(m)
}

// UnregisterObjectMapping removes every mapping of an object class.
func (r *Registry) UnregisterObjectMapping(className string) {
	for _, m := range slices.Clone(r.byClass[className]) {
		r.removeObject(m)
	}
}

// UnregisterMessageMapping removes the mapping for a message type.
func (r *Registry) UnregisterMessageMapping(t core.MessageType) {
	if m, ok := r.byMessage[t]; ok {
		r.removeInteraction(m)
	}
}

// UnregisterInteractionMapping removes the mapping for an interaction class.
func (r *Registry) UnregisterInteractionMapping(className string) {
	if m, ok := r.byInteraction[className]; ok {
		r.removeInteraction(m)
	}
}

// ObjectMappings returns all object mappings in registration order.
func (r *Registry) ObjectMappings() []*ObjectToActor {
	return r.objects
}

// InteractionMappings returns all interaction mappings in registration order.
func (r *Registry) InteractionMappings() []*InteractionToMessage {
	return r.interactions
}

// Clear drops every mapping.
func (r *Registry) Clear() {
	r.objects = nil
	r.interactions = nil
	clear(r.byClass)
	clear(r.byActor)
	clear(r.byInteraction)
	clear(r.byMessage)
}

func (r *Registry) removeObject(m *ObjectToActor) {
	r.objects = slices.DeleteFunc(r.objects, func(o *ObjectToActor) bool { return o == m })
	left := slices.DeleteFunc(r.byClass[m.ObjectClassName], func(o *ObjectToActor) bool { return o == m })
	if len(left) == 0 {
		delete(r.byClass, m.ObjectClassName)
	} else {
		r.byClass[m.ObjectClassName] = left
	}
	if r.byActor[m.ActorType] == m {
		delete(r.byActor, m.ActorType)
	}
}

func (r *Registry) removeInteraction(m *InteractionToMessage) {
	r.interactions = slices.DeleteFunc(r.interactions, func(o *InteractionToMessage) bool { return o == m })
	if r.byInteraction[m.InteractionClassName] == m {
		delete(r.byInteraction, m.InteractionClassName)
	}
	if r.byMessage[m.MessageType] == m {
		delete(r.byMessage, m.MessageType)
	}
}
