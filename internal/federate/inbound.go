package federate

import (
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

// HandleEvent is the single entry point for federation callbacks.
func (c *Coordinator) HandleEvent(e hla.Event) {
	c.metrics.event(e.Kind.String())
	switch e.Kind {
	case hla.EventObjectDiscovered:
		c.objectDiscovered(e)
	case hla.EventAttributesReflected:
		c.attributesReflected(e)
	case hla.EventObjectRemoved:
		c.objectRemoved(e)
	case hla.EventInteractionReceived:
		c.interactionReceived(e)
	default:
		c.logger.Warn("unknown federation event", "kind", e.Kind.String())
	}
}

func (c *Coordinator) objectDiscovered(e hla.Event) {
	actor := core.NewActorID()
	if !c.ids.PutHandle(e.Object, actor) {
		c.logger.Warn("discovered object is already known", "object", e.Object, "name", e.ObjectName)
		return
	}
	c.logger.Debug("discovered object", "object", e.Object, "name", e.ObjectName, "actor", actor)
}

// reserved collects the values of fields mapped to the message actor ids.
type reserved struct {
	about   *core.Parameter
	sending *core.Parameter
}

func (c *Coordinator) attributesReflected(e hla.Event) {
	actor, ok := c.ids.ActorForHandle(e.Object)
	if !ok {
		c.logger.Debug("reflection for unknown object", "object", e.Object)
		return
	}

	m := c.ids.MappingForHandle(e.Object)
	isNew := m == nil
	if isNew {
		if m = c.selectMapping(e); m == nil {
			return
		}
		c.ids.PutMapping(e.Object, m)
	}

	if m.EntityIDAttribute != 0 {
		if _, bound := c.ids.EntityForActor(actor); !bound {
			c.bindEntityID(e, m, actor)
		}
	}

	msgType := core.ActorUpdated
	if isNew {
		msgType = core.ActorCreated
	}
	msg := core.NewMessage(msgType)
	msg.ActorType = m.ActorType
	msg.AboutActorID = actor

	var res reserved
	for _, a := range m.Attributes {
		if a.Invalid || a.Handle == 0 {
			continue
		}
		buf, present := e.Attributes.Find(a.Handle)
		if !present && !isNew && !a.RequiredForApp() {
			continue
		}
		params, err := c.inboundParams(msg, &a.FieldMapping, &res)
		if err != nil {
			c.logger.Error("cannot add application parameter, disabling attribute",
				"objectClass", m.ObjectClassName, "attribute", a.Name, "error", err)
			a.Invalid = true
			continue
		}
		if present {
			c.translator.Decode(&a.FieldMapping, buf, params)
		} else {
			c.applyDefaults(&a.FieldMapping, params, isNew)
		}
	}
	if id, ok := c.reservedActor(res.sending); ok {
		msg.SendingActorID = id
	}
	dropUnset(msg)

	c.sink.Send(msg)
}

// reservedActor reads an actor id from a reserved field. The mapping may
// declare the field with any application type that converts to a string.
func (c *Coordinator) reservedActor(p *core.Parameter) (core.ActorID, bool) {
	if !p.IsSet() {
		return "", false
	}
	v, err := core.ConvertValue(core.DataTypeActor, p.Value)
	if err != nil {
		c.logger.Warn("reserved field does not hold an actor id", "parameter", p.Name, "error", err)
		return "", false
	}
	id, ok := v.(core.ActorID)
	return id, ok && id != ""
}

// selectMapping picks the mapping for an object on its first reflection.
// It returns nil when the choice has to wait for the entity type or when
// no mapping fits; in the latter case the object is forgotten.
func (c *Coordinator) selectMapping(e hla.Event) *mapping.ObjectToActor {
	class := e.ObjectClass
	if class == 0 {
		var err error
		if class, err = c.session.ObjectClassOf(e.Object); err != nil {
			c.logger.Error("cannot resolve class of object", "object", e.Object, "error", err)
			return nil
		}
	}
	className, err := c.session.ObjectClassName(class)
	if err != nil {
		c.logger.Error("cannot resolve object class name", "object", e.Object, "class", class, "error", err)
		return nil
	}

	candidates := c.registry.ObjectMappingsForClass(className)
	if len(candidates) == 0 {
		c.logger.Debug("no mapping for object class", "objectClass", className)
		c.metrics.drop("unmapped_class")
		return nil
	}

	et, found := c.entityType(e, class)
	if !found {
		if c.registry.NeedsEntityType(className) {
			c.logger.Debug("waiting for entity type before mapping object",
				"object", e.Object, "objectClass", className)
			return nil
		}
		return candidates[0]
	}

	m, rank := c.registry.BestObjectMapping(className, et)
	if m == nil {
		c.logger.Warn("no mapping matches entity type, ignoring object",
			"object", e.Object, "objectClass", className, "entityType", et.String())
		c.ids.RemoveHandle(e.Object)
		c.metrics.drop("unmatched_entity_type")
		return nil
	}
	c.logger.Debug("mapped object",
		"object", e.Object, "objectClass", className, "entityType", et.String(),
		"actorType", m.ActorType.String(), "rank", rank)
	return m
}

func (c *Coordinator) entityType(e hla.Event, class hla.ObjectClassHandle) (rpr.EntityType, bool) {
	var et rpr.EntityType
	h, err := c.session.AttributeHandle(mapping.EntityTypeAttributeName, class)
	if err != nil {
		return et, false
	}
	buf, ok := e.Attributes.Find(h)
	if !ok {
		return et, false
	}
	if err := et.Decode(buf); err != nil {
		c.logger.Warn("cannot decode entity type", "object", e.Object, "error", err)
		return et, false
	}
	return et, true
}

func (c *Coordinator) bindEntityID(e hla.Event, m *mapping.ObjectToActor, actor core.ActorID) {
	buf, ok := e.Attributes.Find(m.EntityIDAttribute)
	if !ok {
		return
	}
	var id rpr.EntityIdentifier
	if err := id.Decode(buf); err != nil {
		c.logger.Warn("cannot decode entity identifier", "object", e.Object, "error", err)
		return
	}
	if !c.ids.PutEntityID(id, actor) {
		c.logger.Warn("entity identifier already bound to another actor",
			"object", e.Object, "entity", id.String(), "actor", actor)
	}
}

func (c *Coordinator) objectRemoved(e hla.Event) {
	actor, ok := c.ids.ActorForHandle(e.Object)
	if !ok {
		c.logger.Debug("removal of unknown object", "object", e.Object)
		c.ids.RemoveHandle(e.Object)
		return
	}
	msg := core.NewMessage(core.ActorDeleted)
	msg.AboutActorID = actor
	if m := c.ids.MappingForHandle(e.Object); m != nil {
		msg.ActorType = m.ActorType
	}
	c.sink.Send(msg)
	c.ids.RemoveHandle(e.Object)
}

func (c *Coordinator) interactionReceived(e hla.Event) {
	className, err := c.session.InteractionClassName(e.Interaction)
	if err != nil {
		c.logger.Error("cannot resolve interaction class name", "class", e.Interaction, "error", err)
		return
	}
	im := c.registry.InteractionMapping(className)
	if im == nil {
		c.logger.Debug("no mapping for interaction class", "interactionClass", className)
		c.metrics.drop("unmapped_interaction")
		return
	}

	msg := core.NewMessage(im.MessageType)
	var res reserved
	for _, p := range im.Parameters {
		if p.Invalid || p.Handle == 0 {
			continue
		}
		buf, present := e.Parameters.Find(p.Handle)
		if !present && !p.RequiredForApp() {
			continue
		}
		params, err := c.inboundParams(msg, &p.FieldMapping, &res)
		if err != nil {
			c.logger.Error("cannot add application parameter, disabling parameter",
				"interactionClass", className, "parameter", p.Name, "error", err)
			p.Invalid = true
			continue
		}
		if present {
			c.translator.Decode(&p.FieldMapping, buf, params)
		} else {
			c.applyDefaults(&p.FieldMapping, params, false)
		}
	}
	if id, ok := c.reservedActor(res.about); ok {
		msg.AboutActorID = id
	}
	if id, ok := c.reservedActor(res.sending); ok {
		msg.SendingActorID = id
	}
	dropUnset(msg)

	c.sink.Send(msg)
}

// inboundParams creates the message parameters a field decodes into. The
// reserved actor id fields decode into scratch parameters kept in res.
func (c *Coordinator) inboundParams(msg *core.Message, f *mapping.FieldMapping, res *reserved) ([]*core.Parameter, error) {
	params := make([]*core.Parameter, len(f.Definitions))
	for i := range f.Definitions {
		def := &f.Definitions[i]
		switch def.Name {
		case mapping.AboutActorIDParameter:
			res.about = &core.Parameter{Name: def.Name, Type: core.DataTypeActor}
			params[i] = res.about
		case mapping.SendingActorIDParameter:
			res.sending = &core.Parameter{Name: def.Name, Type: core.DataTypeActor}
			params[i] = res.sending
		default:
			p, err := msg.AddParam(def.Name, def.Type)
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
	}
	return params, nil
}

// applyDefaults sets configured defaults on unset parameters of a new
// object, or of required fields.
func (c *Coordinator) applyDefaults(f *mapping.FieldMapping, params []*core.Parameter, isNew bool) {
	for i := range f.Definitions {
		def := &f.Definitions[i]
		p := params[i]
		if p.IsSet() || def.Default == "" || !(isNew || def.Required) {
			continue
		}
		if err := p.Set(def.Default); err != nil {
			c.logger.Warn("invalid default value", "field", f.Name, "parameter", def.Name,
				"default", def.Default, "error", err)
		}
	}
}

func dropUnset(msg *core.Message) {
	var unset []string
	for _, p := range msg.Params() {
		if !p.IsSet() {
			unset = append(unset, p.Name)
		}
	}
	for _, name := range unset {
		msg.RemoveParam(name)
	}
}
