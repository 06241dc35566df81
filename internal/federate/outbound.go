package federate

import (
	"errors"
	"fmt"

	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

// ErrMissingActorID is returned for actor messages without an about actor id.
var ErrMissingActorID = errors.New("message has no about actor id")

// Dispatch translates an application message into federation traffic.
// Messages without a usable mapping are logged and dropped.
func (c *Coordinator) Dispatch(msg *core.Message) error {
	if !c.joined {
		return fmt.Errorf("dispatching %s: %w", msg.Type, hla.ErrNotJoined)
	}
	switch msg.Type {
	case core.ActorDeleted:
		return c.dispatchDelete(msg)
	case core.ActorCreated, core.ActorUpdated:
		return c.dispatchUpdate(msg)
	default:
		return c.dispatchInteraction(msg)
	}
}

func (c *Coordinator) dispatchDelete(msg *core.Message) error {
	h, ok := c.ids.HandleForActor(msg.AboutActorID)
	if !ok {
		c.logger.Info("delete for actor without object", "actor", msg.AboutActorID)
		c.metrics.drop("unknown_actor")
		return nil
	}
	err := c.session.DeleteObjectInstance(h, msg.AboutActorID.String())
	c.ids.RemoveActor(msg.AboutActorID)
	if err != nil {
		return fmt.Errorf("deleting object %d: %w", h, err)
	}
	c.metrics.sent(string(msg.Type))
	return nil
}

func (c *Coordinator) dispatchUpdate(msg *core.Message) error {
	m := c.registry.ActorMapping(msg.ActorType)
	if m == nil {
		c.logger.Info("no mapping for actor type", "actorType", msg.ActorType.String())
		c.metrics.drop("unmapped_actor_type")
		return nil
	}
	if msg.AboutActorID.IsZero() {
		return fmt.Errorf("dispatching %s for %s: %w", msg.Type, msg.ActorType.String(), ErrMissingActorID)
	}
	actor := msg.AboutActorID

	h, known := c.ids.HandleForActor(actor)
	isNew := !known
	if isNew {
		if m.ObjectClass == 0 {
			c.logger.Debug("object class not registered", "objectClass", m.ObjectClassName)
			return nil
		}
		var err error
		h, err = c.session.RegisterObjectInstance(m.ObjectClass, actor.String())
		if err != nil {
			return fmt.Errorf("registering object for %s: %w", actor, err)
		}
		c.ids.PutHandle(h, actor)
		c.ids.PutMapping(h, m)
		c.logger.Debug("registered object", "object", h, "actor", actor, "objectClass", m.ObjectClassName)
	}

	var attrs hla.AttributeValues
	if m.EntityIDAttribute != 0 {
		id, ok := c.ids.EntityForActor(actor)
		if !ok {
			id = c.nextEntityID()
			c.ids.PutEntityID(id, actor)
		}
		buf := make([]byte, rpr.EntityIdentifierLength)
		if err := id.Encode(buf); err == nil {
			attrs = append(attrs, hla.AttributeValue{Handle: m.EntityIDAttribute, Value: buf})
		}
	}
	if m.DISType != nil && m.EntityTypeAttribute != 0 {
		buf := make([]byte, rpr.EntityTypeLength)
		if err := m.DISType.Encode(buf); err == nil {
			attrs = append(attrs, hla.AttributeValue{Handle: m.EntityTypeAttribute, Value: buf})
		}
	}

	for _, a := range m.Attributes {
		if a.Invalid || a.Handle == 0 {
			continue
		}
		params, ok := c.outboundParams(msg, &a.FieldMapping, isNew || a.Required)
		if !ok {
			continue
		}
		if buf := c.translator.Encode(&a.FieldMapping, params); buf != nil {
			attrs = append(attrs, hla.AttributeValue{Handle: a.Handle, Value: buf})
		}
	}

	if len(attrs) == 0 {
		return nil
	}
	if err := c.session.UpdateAttributeValues(h, attrs, actor.String()); err != nil {
		return fmt.Errorf("updating object %d: %w", h, err)
	}
	c.metrics.sent(string(msg.Type))
	return nil
}

// nextEntityID allocates a local entity identifier. Entity number 0 is
// skipped when the counter wraps.
func (c *Coordinator) nextEntityID() rpr.EntityIdentifier {
	if c.entityCounter == 0 {
		c.entityCounter = 1
	}
	id := rpr.EntityIdentifier{Site: c.siteID, Application: c.appID, Entity: c.entityCounter}
	c.entityCounter++
	return id
}

func (c *Coordinator) dispatchInteraction(msg *core.Message) error {
	im := c.registry.MessageMapping(msg.Type)
	if im == nil {
		c.logger.Info("no mapping for message type", "messageType", msg.Type)
		c.metrics.drop("unmapped_message")
		return nil
	}
	if im.InteractionClass == 0 {
		c.logger.Debug("interaction class not registered", "interactionClass", im.InteractionClassName)
		return nil
	}

	var params hla.ParameterValues
	for _, p := range im.Parameters {
		if p.Invalid || p.Handle == 0 {
			continue
		}
		in, ok := c.outboundParams(msg, &p.FieldMapping, true)
		if !ok {
			continue
		}
		if buf := c.translator.Encode(&p.FieldMapping, in); buf != nil {
			params = append(params, hla.ParameterValue{Handle: p.Handle, Value: buf})
		}
	}
	if len(params) == 0 {
		return nil
	}
	if err := c.session.SendInteraction(im.InteractionClass, params, msg.SendingActorID.String()); err != nil {
		return fmt.Errorf("sending %s: %w", im.InteractionClassName, err)
	}
	c.metrics.sent(string(msg.Type))
	return nil
}

// outboundParams collects the message values a field encodes. Reserved
// names read the message actor ids. When the message carries none of the
// field's values the field is skipped unless defaults are allowed, in
// which case missing values come from the configured defaults.
func (c *Coordinator) outboundParams(msg *core.Message, f *mapping.FieldMapping, defaults bool) ([]*core.Parameter, bool) {
	params := make([]*core.Parameter, len(f.Definitions))
	found := false
	for i := range f.Definitions {
		def := &f.Definitions[i]
		var p *core.Parameter
		switch def.Name {
		case mapping.AboutActorIDParameter:
			p = actorParam(def.Name, msg.AboutActorID)
		case mapping.SendingActorIDParameter:
			p = actorParam(def.Name, msg.SendingActorID)
		default:
			p = msg.Param(def.Name)
		}
		if p.IsSet() {
			params[i] = p
			found = true
		}
	}
	if !found && !defaults {
		return nil, false
	}

	for i := range f.Definitions {
		if params[i] != nil {
			continue
		}
		def := &f.Definitions[i]
		p := &core.Parameter{Name: def.Name, Type: def.Type}
		if def.Default != "" {
			if err := p.Set(def.Default); err != nil {
				c.logger.Warn("invalid default value", "field", f.Name, "parameter", def.Name,
					"default", def.Default, "error", err)
			}
		}
		params[i] = p
	}
	if !params[0].IsSet() {
		return nil, false
	}
	return params, true
}

func actorParam(name string, id core.ActorID) *core.Parameter {
	if id.IsZero() {
		return nil
	}
	return &core.Parameter{Name: name, Type: core.DataTypeActor, Value: id}
}
