// Package federate runs the bridge state machine: it joins a federation,
// registers the configured mappings with it, translates federation
// callbacks into application messages and application messages into
// attribute updates, object deletions and interactions.
package federate

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/OCAP2/hlabridge/internal/identity"
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/internal/translator"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
)

// Sink receives the application messages produced from federation traffic.
type Sink interface {
	Send(msg *core.Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(*core.Message)

// Send calls f(msg).
func (f SinkFunc) Send(msg *core.Message) { f(msg) }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSiteID sets the DIS site of locally allocated entity identifiers.
func WithSiteID(id uint16) Option {
	return func(c *Coordinator) {
		if id != 0 {
			c.siteID = id
		}
	}
}

// WithApplicationID sets the DIS application of locally allocated entity
// identifiers.
func WithApplicationID(id uint16) Option {
	return func(c *Coordinator) {
		if id != 0 {
			c.appID = id
		}
	}
}

// Coordinator bridges one federate. It is driven from a single goroutine:
// Dispatch, Tick and the callbacks Tick triggers must not run concurrently.
type Coordinator struct {
	session    hla.Session
	registry   *mapping.Registry
	ids        *identity.Table
	translator *translator.Translator
	sink       Sink
	logger     *slog.Logger
	metrics    *metrics

	joined    bool
	execution string
	federate  string

	siteID        uint16
	appID         uint16
	entityCounter uint16
}

// New creates a disjoined coordinator. Site and application ids default to
// random values in 1..65535.
func New(
	session hla.Session,
	registry *mapping.Registry,
	tr *translator.Translator,
	ids *identity.Table,
	sink Sink,
	logger *slog.Logger,
	opts ...Option,
) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		session:       session,
		registry:      registry,
		ids:           ids,
		translator:    tr,
		sink:          sink,
		logger:        logger,
		metrics:       m,
		siteID:        uint16(rand.IntN(65535) + 1),
		appID:         uint16(rand.IntN(65535) + 1),
		entityCounter: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsJoined reports whether the coordinator is joined to a federation.
func (c *Coordinator) IsJoined() bool { return c.joined }

// SiteID returns the DIS site used for local entities.
func (c *Coordinator) SiteID() uint16 { return c.siteID }

// ApplicationID returns the DIS application used for local entities.
func (c *Coordinator) ApplicationID() uint16 { return c.appID }

// Identities returns the runtime identity table.
func (c *Coordinator) Identities() *identity.Table { return c.ids }

// JoinFederation creates the execution if needed, joins it and registers
// every mapping. A mapping that cannot be registered is logged and skipped.
func (c *Coordinator) JoinFederation(execution, fomFile, federate string) error {
	if c.joined {
		return fmt.Errorf("joining %s as %s: %w", execution, federate, hla.ErrAlreadyJoined)
	}

	err := c.session.CreateFederationExecution(execution, fomFile)
	switch {
	case err == nil:
		c.logger.Info("created federation execution", "execution", execution, "fom", fomFile)
	case errors.Is(err, hla.ErrFederationExecutionAlreadyExists):
		c.logger.Debug("federation execution already exists", "execution", execution)
	default:
		return fmt.Errorf("creating federation execution %s: %w", execution, err)
	}

	if err := c.session.JoinFederationExecution(federate, execution, c); err != nil {
		return fmt.Errorf("joining %s as %s: %w", execution, federate, err)
	}
	c.joined = true
	c.execution = execution
	c.federate = federate
	c.entityCounter = 1
	c.translator.ResetCounters()

	for _, m := range c.registry.ObjectMappings() {
		if err := c.registerObjectMapping(m); err != nil {
			c.logger.Error("cannot register object mapping",
				"objectClass", m.ObjectClassName, "actorType", m.ActorType.String(), "error", err)
		}
	}
	for _, m := range c.registry.InteractionMappings() {
		if err := c.registerInteractionMapping(m); err != nil {
			c.logger.Error("cannot register interaction mapping",
				"interactionClass", m.InteractionClassName, "messageType", m.MessageType, "error", err)
		}
	}

	c.logger.Info("joined federation",
		"execution", execution, "federate", federate, "site", c.siteID, "application", c.appID)
	return nil
}

// registerObjectMapping resolves m against the joined execution. Handles
// and invalid flags from an earlier session are discarded first.
func (c *Coordinator) registerObjectMapping(m *mapping.ObjectToActor) error {
	m.ObjectClass = 0
	m.EntityIDAttribute = 0
	m.EntityTypeAttribute = 0
	for _, a := range m.Attributes {
		a.Handle = 0
		a.Invalid = false
	}

	class, err := c.session.ObjectClassHandle(m.ObjectClassName)
	if err != nil {
		return fmt.Errorf("resolving object class: %w", err)
	}
	m.ObjectClass = class

	var attrs []hla.AttributeHandle
	add := func(h hla.AttributeHandle) {
		for _, a := range attrs {
			if a == h {
				return
			}
		}
		attrs = append(attrs, h)
	}

	m.EntityIDAttribute = 0
	if m.EntityIDAttributeName != "" {
		h, err := c.session.AttributeHandle(m.EntityIDAttributeName, class)
		if err != nil {
			c.logger.Error("cannot resolve entity identifier attribute",
				"objectClass", m.ObjectClassName, "attribute", m.EntityIDAttributeName, "error", err)
		} else {
			m.EntityIDAttribute = h
			add(h)
		}
	}

	m.EntityTypeAttribute = 0
	if h, err := c.session.AttributeHandle(mapping.EntityTypeAttributeName, class); err == nil {
		m.EntityTypeAttribute = h
		add(h)
	} else if m.DISType != nil {
		c.logger.Warn("mapping has a DIS type but the class has no entity type attribute",
			"objectClass", m.ObjectClassName, "error", err)
	}

	for _, a := range m.Attributes {
		h, err := c.session.AttributeHandle(a.Name, class)
		if err != nil {
			c.logger.Error("cannot resolve attribute, skipping it",
				"objectClass", m.ObjectClassName, "attribute", a.Name, "error", err)
			a.Invalid = true
			continue
		}
		if err := c.translator.Bind(&a.FieldMapping); err != nil {
			c.logger.Error("cannot bind attribute codec, skipping it",
				"objectClass", m.ObjectClassName, "attribute", a.Name, "error", err)
			a.Invalid = true
			continue
		}
		a.Handle = h
		add(h)
	}

	if err := c.session.SubscribeObjectClassAttributes(class, attrs); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	if !m.RemoteOnly {
		if err := c.session.PublishObjectClass(class, attrs); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
	}
	c.logger.Debug("registered object mapping",
		"objectClass", m.ObjectClassName, "actorType", m.ActorType.String(),
		"attributes", len(attrs), "remoteOnly", m.RemoteOnly)
	return nil
}

func (c *Coordinator) registerInteractionMapping(m *mapping.InteractionToMessage) error {
	m.InteractionClass = 0
	for _, p := range m.Parameters {
		p.Handle = 0
		p.Invalid = false
	}

	class, err := c.session.InteractionClassHandle(m.InteractionClassName)
	if err != nil {
		return fmt.Errorf("resolving interaction class: %w", err)
	}
	m.InteractionClass = class

	for _, p := range m.Parameters {
		h, err := c.session.ParameterHandle(p.Name, class)
		if err != nil {
			c.logger.Error("cannot resolve parameter, skipping it",
				"interactionClass", m.InteractionClassName, "parameter", p.Name, "error", err)
			p.Invalid = true
			continue
		}
		if err := c.translator.Bind(&p.FieldMapping); err != nil {
			c.logger.Error("cannot bind parameter codec, skipping it",
				"interactionClass", m.InteractionClassName, "parameter", p.Name, "error", err)
			p.Invalid = true
			continue
		}
		p.Handle = h
	}

	if err := c.session.SubscribeInteractionClass(class); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	if err := c.session.PublishInteractionClass(class); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}
	c.logger.Debug("registered interaction mapping",
		"interactionClass", m.InteractionClassName, "messageType", m.MessageType)
	return nil
}

// LeaveFederation clears the runtime identities, resigns and destroys the
// execution if no federate is left. It is a no-op when not joined, and a
// session that already resigned or an execution that is still in use are
// not errors.
func (c *Coordinator) LeaveFederation() error {
	if !c.joined {
		return nil
	}
	c.ids.Clear()
	c.joined = false
	execution := c.execution

	var errs []error
	if err := c.session.ResignFederationExecution(); err != nil && !errors.Is(err, hla.ErrNotJoined) {
		errs = append(errs, fmt.Errorf("resigning from %s: %w", execution, err))
	}
	err := c.session.DestroyFederationExecution(execution)
	switch {
	case err == nil:
		c.logger.Info("destroyed federation execution", "execution", execution)
	case errors.Is(err, hla.ErrFederatesCurrentlyJoined),
		errors.Is(err, hla.ErrFederationExecutionDoesNotExist):
		c.logger.Debug("federation execution not destroyed", "execution", execution, "reason", err)
	default:
		errs = append(errs, fmt.Errorf("destroying %s: %w", execution, err))
	}

	c.logger.Info("left federation", "execution", execution, "federate", c.federate)
	return errors.Join(errs...)
}

// Tick lets the session deliver queued callbacks.
func (c *Coordinator) Tick() error {
	if !c.joined {
		return nil
	}
	return c.session.Tick()
}
