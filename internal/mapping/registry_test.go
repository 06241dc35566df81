package mapping

import (
	"testing"

	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const platformClass = "BaseEntity.PhysicalEntity.Platform.GroundVehicle"

func entityType(t *testing.T, s string) *rpr.EntityType {
	t.Helper()
	et, err := rpr.ParseEntityType(s)
	require.NoError(t, err)
	return &et
}

func TestRegisterObjectMapping_SecondLocalMappingForcedRemote(t *testing.T) {
	r := NewRegistry(nil)
	tank := core.ActorType{Category: "Vehicles", Name: "Tank"}

	first := &ObjectToActor{ObjectClassName: platformClass, ActorType: tank}
	second := &ObjectToActor{ObjectClassName: platformClass + ".Other", ActorType: tank}

	assert.False(t, r.RegisterObjectMapping(first))
	assert.True(t, r.RegisterObjectMapping(second))

	assert.True(t, second.RemoteOnly)
	assert.Same(t, first, r.ActorMapping(tank))
	assert.Len(t, r.ObjectMappings(), 2)
}

func TestRegisterObjectMapping_RemoteOnlyDoesNotClaimActorType(t *testing.T) {
	r := NewRegistry(nil)
	tank := core.ActorType{Category: "Vehicles", Name: "Tank"}

	remote := &ObjectToActor{ObjectClassName: platformClass, ActorType: tank, RemoteOnly: true}
	local := &ObjectToActor{ObjectClassName: platformClass, ActorType: tank}

	assert.False(t, r.RegisterObjectMapping(remote))
	assert.False(t, r.RegisterObjectMapping(local))
	assert.Same(t, local, r.ActorMapping(tank))
}

func TestBestObjectMapping_PrefersMoreSpecific(t *testing.T) {
	r := NewRegistry(nil)
	generic := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "Generic"}, DISType: entityType(t, "1 1 225")}
	specific := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "M1"}, DISType: entityType(t, "1 1 225 1 1")}
	r.RegisterObjectMapping(generic)
	r.RegisterObjectMapping(specific)

	m, rank := r.BestObjectMapping(platformClass, *entityType(t, "1 1 225 1 1 3"))
	assert.Same(t, specific, m)
	assert.Equal(t, 5, rank)

	m, rank = r.BestObjectMapping(platformClass, *entityType(t, "1 1 225 1 2"))
	assert.Same(t, generic, m)
	assert.Equal(t, 3, rank)

	m, rank = r.BestObjectMapping(platformClass, *entityType(t, "2 1 225"))
	assert.Nil(t, m)
	assert.Equal(t, -1, rank)
}

func TestBestObjectMapping_TieKeepsFirstRegistered(t *testing.T) {
	r := NewRegistry(nil)
	a := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "A"}, DISType: entityType(t, "1 1 225")}
	b := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "B"}, DISType: entityType(t, "1 1 225")}
	r.RegisterObjectMapping(a)
	r.RegisterObjectMapping(b)

	m, _ := r.BestObjectMapping(platformClass, *entityType(t, "1 1 225 4"))
	assert.Same(t, a, m)
}

func TestBestObjectMapping_UntypedMappingIsWildcard(t *testing.T) {
	r := NewRegistry(nil)
	wild := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "Any"}}
	r.RegisterObjectMapping(wild)

	m, rank := r.BestObjectMapping(platformClass, *entityType(t, "3 1 225"))
	assert.Same(t, wild, m)
	assert.Equal(t, 0, rank)
	assert.False(t, r.NeedsEntityType(platformClass))
}

func TestObjectMapping_ExactThenRanked(t *testing.T) {
	r := NewRegistry(nil)
	untyped := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "U"}}
	typed := &ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "T"}, DISType: entityType(t, "1 1 225 2")}
	r.RegisterObjectMapping(untyped)
	r.RegisterObjectMapping(typed)

	assert.Same(t, untyped, r.ObjectMapping(platformClass, nil))
	assert.Same(t, typed, r.ObjectMapping(platformClass, entityType(t, "1 1 225 2")))
	assert.Same(t, typed, r.ObjectMapping(platformClass, entityType(t, "1 1 225 2 7")))
	assert.Nil(t, r.ObjectMapping("Unknown", nil))
	assert.True(t, r.NeedsEntityType(platformClass))
}

func TestUnregister_CascadesReverseIndex(t *testing.T) {
	r := NewRegistry(nil)
	tank := core.ActorType{Category: "Vehicles", Name: "Tank"}
	m := &ObjectToActor{ObjectClassName: platformClass, ActorType: tank}
	r.RegisterObjectMapping(m)

	r.UnregisterObjectMapping(platformClass)
	assert.Nil(t, r.ActorMapping(tank))
	assert.Empty(t, r.ObjectMappingsForClass(platformClass))
	assert.Empty(t, r.ObjectMappings())

	r.RegisterObjectMapping(m)
	r.UnregisterActorMapping(tank)
	assert.Empty(t, r.ObjectMappingsForClass(platformClass))

	im := &InteractionToMessage{InteractionClassName: "WeaponFire", MessageType: "WeaponFired"}
	r.RegisterInteractionMapping(im)
	assert.Same(t, im, r.MessageMapping("WeaponFired"))
	assert.Same(t, im, r.InteractionMapping("WeaponFire"))

	r.UnregisterMessageMapping("WeaponFired")
	assert.Nil(t, r.InteractionMapping("WeaponFire"))
	assert.Empty(t, r.InteractionMappings())

	r.RegisterInteractionMapping(im)
	r.UnregisterInteractionMapping("WeaponFire")
	assert.Nil(t, r.MessageMapping("WeaponFired"))
}

func TestClear(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterObjectMapping(&ObjectToActor{ObjectClassName: platformClass, ActorType: core.ActorType{Name: "A"}})
	r.RegisterInteractionMapping(&InteractionToMessage{InteractionClassName: "X", MessageType: "Y"})

	r.Clear()
	assert.Empty(t, r.ObjectMappings())
	assert.Empty(t, r.InteractionMappings())
	assert.Nil(t, r.ActorMapping(core.ActorType{Name: "A"}))
	assert.Nil(t, r.MessageMapping("Y"))
}

func TestParameterDefinition_EnumFirstMappingWins(t *testing.T) {
	var d ParameterDefinition
	d.AddEnumMapping("0", "NoDamage")
	d.AddEnumMapping("1", "SlightDamage")
	d.AddEnumMapping("3", "SlightDamage")

	v, ok := d.AppEnum("3")
	require.True(t, ok)
	assert.Equal(t, "SlightDamage", v)

	w, ok := d.WireEnum("SlightDamage")
	require.True(t, ok)
	assert.Equal(t, "1", w)

	_, ok = d.WireEnum("Destroyed")
	assert.False(t, ok)

	assert.Equal(t, [][2]string{{"0", "NoDamage"}, {"1", "SlightDamage"}, {"3", "SlightDamage"}}, d.EnumMappings())
}
