package config

import (
	"fmt"
	"io"

	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
	"github.com/spf13/viper"
)

// EnumMappingDecl pairs a wire token with an application token.
type EnumMappingDecl struct {
	ID    string `mapstructure:"id"`
	Value string `mapstructure:"value"`
}

// ParameterDecl declares one application field fed by a wire field.
type ParameterDecl struct {
	GameName           string            `mapstructure:"gameName"`
	GameDataType       string            `mapstructure:"gameDataType"`
	GameRequired       bool              `mapstructure:"gameRequired"`
	Default            string            `mapstructure:"default"`
	EnumerationMapping []EnumMappingDecl `mapstructure:"enumerationMapping"`
}

// FieldDecl declares one attribute or interaction parameter.
type FieldDecl struct {
	HLAName     string          `mapstructure:"hlaName"`
	HLADataType string          `mapstructure:"hlaDataType"`
	HLARequired bool            `mapstructure:"hlaRequired"`
	Parameters  []ParameterDecl `mapstructure:"parameters"`
}

// ObjectDecl declares an object class to actor type mapping. Abstract
// declarations are only used as templates for others through Extends.
type ObjectDecl struct {
	Name                  string      `mapstructure:"name"`
	Extends               string      `mapstructure:"extends"`
	Abstract              bool        `mapstructure:"abstract"`
	ObjectClass           string      `mapstructure:"objectClass"`
	ActorType             string      `mapstructure:"actorType"`
	EntityIDAttributeName string      `mapstructure:"entityIdAttributeName"`
	DISEntityEnum         string      `mapstructure:"disEntityEnum"`
	RemoteOnly            *bool       `mapstructure:"remoteOnly"`
	AttrToProp            []FieldDecl `mapstructure:"attrToProp"`
}

// InteractionDecl declares an interaction class to message type mapping.
type InteractionDecl struct {
	InteractionClass string      `mapstructure:"interactionClass"`
	MessageType      string      `mapstructure:"messageType"`
	ParamToParam     []FieldDecl `mapstructure:"paramToParam"`
}

// MappingFile is the root of a mappings document.
type MappingFile struct {
	Objects      []ObjectDecl      `mapstructure:"objects"`
	Interactions []InteractionDecl `mapstructure:"interactions"`
}

// LoadMappings reads a JSON or YAML mappings file and registers every
// concrete declaration with registry.
func LoadMappings(path string, types *rpr.Registry, registry *mapping.Registry) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading mappings file: %w", err)
	}
	return registerMappings(v, types, registry)
}

// ReadMappings is LoadMappings for an in-memory document; format is a
// viper config type such as "json" or "yaml".
func ReadMappings(r io.Reader, format string, types *rpr.Registry, registry *mapping.Registry) error {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return fmt.Errorf("error reading mappings: %w", err)
	}
	return registerMappings(v, types, registry)
}

func registerMappings(v *viper.Viper, types *rpr.Registry, registry *mapping.Registry) error {
	var file MappingFile
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("error decoding mappings: %w", err)
	}

	objects, err := resolveObjects(file.Objects, types)
	if err != nil {
		return err
	}
	interactions := make([]*mapping.InteractionToMessage, 0, len(file.Interactions))
	for _, d := range file.Interactions {
		m, err := buildInteraction(d, types)
		if err != nil {
			return err
		}
		interactions = append(interactions, m)
	}

	for _, m := range objects {
		registry.RegisterObjectMapping(m)
	}
	for _, m := range interactions {
		registry.RegisterInteractionMapping(m)
	}
	return nil
}

func resolveObjects(decls []ObjectDecl, types *rpr.Registry) ([]*mapping.ObjectToActor, error) {
	byName := make(map[string]ObjectDecl, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			continue
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate object mapping name %q", d.Name)
		}
		byName[d.Name] = d
	}

	var out []*mapping.ObjectToActor
	for _, d := range decls {
		if d.Abstract {
			continue
		}
		flat, err := flatten(d, byName, nil)
		if err != nil {
			return nil, err
		}
		m, err := buildObject(flat, types)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// flatten merges d over the chain of declarations it extends. Scalar
// fields set on d win; attributes are merged by wire name with d's
// declarations replacing inherited ones.
func flatten(d ObjectDecl, byName map[string]ObjectDecl, seen []string) (ObjectDecl, error) {
	if d.Extends == "" {
		return d, nil
	}
	for _, s := range seen {
		if s == d.Extends {
			return ObjectDecl{}, fmt.Errorf("object mapping %q: extends cycle through %q", d.Name, d.Extends)
		}
	}
	parent, ok := byName[d.Extends]
	if !ok {
		return ObjectDecl{}, fmt.Errorf("object mapping %q extends unknown mapping %q", d.Name, d.Extends)
	}
	parent, err := flatten(parent, byName, append(seen, d.Name))
	if err != nil {
		return ObjectDecl{}, err
	}

	merged := d
	merged.Extends = ""
	if merged.ObjectClass == "" {
		merged.ObjectClass = parent.ObjectClass
	}
	if merged.ActorType == "" {
		merged.ActorType = parent.ActorType
	}
	if merged.EntityIDAttributeName == "" {
		merged.EntityIDAttributeName = parent.EntityIDAttributeName
	}
	if merged.DISEntityEnum == "" {
		merged.DISEntityEnum = parent.DISEntityEnum
	}
	if merged.RemoteOnly == nil {
		merged.RemoteOnly = parent.RemoteOnly
	}

	attrs := make([]FieldDecl, 0, len(parent.AttrToProp)+len(d.AttrToProp))
	overridden := make(map[string]bool, len(d.AttrToProp))
	for _, a := range d.AttrToProp {
		overridden[a.HLAName] = true
	}
	for _, a := range parent.AttrToProp {
		if !overridden[a.HLAName] {
			attrs = append(attrs, a)
		}
	}
	merged.AttrToProp = append(attrs, d.AttrToProp...)
	return merged, nil
}

func buildObject(d ObjectDecl, types *rpr.Registry) (*mapping.ObjectToActor, error) {
	label := d.Name
	if label == "" {
		label = d.ObjectClass
	}
	if d.ObjectClass == "" {
		return nil, fmt.Errorf("object mapping %q: objectClass is required", label)
	}
	if d.ActorType == "" {
		return nil, fmt.Errorf("object mapping %q: actorType is required", label)
	}

	m := &mapping.ObjectToActor{
		ObjectClassName:       d.ObjectClass,
		ActorType:             core.ParseActorType(d.ActorType),
		EntityIDAttributeName: d.EntityIDAttributeName,
		RemoteOnly:            d.RemoteOnly != nil && *d.RemoteOnly,
	}
	if d.DISEntityEnum != "" {
		et, err := rpr.ParseEntityType(d.DISEntityEnum)
		if err != nil {
			return nil, fmt.Errorf("object mapping %q: %w", label, err)
		}
		m.DISType = &et
	}
	for _, fd := range d.AttrToProp {
		f, err := buildField(fd, types)
		if err != nil {
			return nil, fmt.Errorf("object mapping %q: %w", label, err)
		}
		m.Attributes = append(m.Attributes, &mapping.AttributeMapping{FieldMapping: f})
	}
	return m, nil
}

func buildInteraction(d InteractionDecl, types *rpr.Registry) (*mapping.InteractionToMessage, error) {
	if d.InteractionClass == "" || d.MessageType == "" {
		return nil, fmt.Errorf("interaction mapping %q: interactionClass and messageType are required", d.InteractionClass)
	}
	m := &mapping.InteractionToMessage{
		InteractionClassName: d.InteractionClass,
		MessageType:          core.MessageType(d.MessageType),
	}
	for _, fd := range d.ParamToParam {
		f, err := buildField(fd, types)
		if err != nil {
			return nil, fmt.Errorf("interaction mapping %q: %w", d.InteractionClass, err)
		}
		m.Parameters = append(m.Parameters, &mapping.ParameterMapping{FieldMapping: f})
	}
	return m, nil
}

func buildField(d FieldDecl, types *rpr.Registry) (mapping.FieldMapping, error) {
	at, ok := types.Lookup(d.HLADataType)
	if !ok {
		return mapping.FieldMapping{}, fmt.Errorf("field %q: unknown attribute type %q", d.HLAName, d.HLADataType)
	}
	if len(d.Parameters) == 0 {
		return mapping.FieldMapping{}, fmt.Errorf("field %q: no parameters", d.HLAName)
	}

	f := mapping.FieldMapping{
		Name:     d.HLAName,
		Type:     at,
		Required: d.HLARequired,
	}
	for _, pd := range d.Parameters {
		dt, err := core.ParseDataType(pd.GameDataType)
		if err != nil {
			return mapping.FieldMapping{}, fmt.Errorf("field %q parameter %q: %w", d.HLAName, pd.GameName, err)
		}
		def := mapping.ParameterDefinition{
			Name:     pd.GameName,
			Type:     dt,
			Default:  pd.Default,
			Required: pd.GameRequired,
		}
		for _, e := range pd.EnumerationMapping {
			def.AddEnumMapping(e.ID, e.Value)
		}
		f.Definitions = append(f.Definitions, def)
	}
	return f, nil
}
