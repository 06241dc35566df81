package rti

// RPR-FOM class names used by the default mappings.
const (
	ClassGroundVehicle = "BaseEntity.PhysicalEntity.Platform.GroundVehicle"
	ClassAircraft      = "BaseEntity.PhysicalEntity.Platform.Aircraft"
	ClassLifeform      = "BaseEntity.PhysicalEntity.Lifeform.Human"

	InteractionWeaponFire         = "WeaponFire"
	InteractionMunitionDetonation = "MunitionDetonation"
	InteractionTimeValue          = "TimeValue"
)

var physicalEntityAttributes = []string{
	"EntityType",
	"EntityIdentifier",
	"WorldLocation",
	"Orientation",
	"VelocityVector",
	"AccelerationVector",
	"AngularVelocityVector",
	"DamageState",
	"Marking",
	"ForceIdentifier",
	"DeadReckoningAlgorithm",
	"FirePowerDisabled",
	"Immobilized",
}

// DefineRPR adds the RPR-FOM 1.0 platform and warfare subset to f.
func DefineRPR(f *FOM) *FOM {
	for _, class := range []string{ClassGroundVehicle, ClassAircraft, ClassLifeform} {
		f.DefineObjectClass(class, physicalEntityAttributes...)
	}
	f.DefineInteractionClass(InteractionWeaponFire,
		"EventIdentifier",
		"FiringObjectIdentifier",
		"TargetObjectIdentifier",
		"FiringLocation",
		"InitialVelocityVector",
		"MunitionType",
		"QuantityFired",
		"RateOfFire",
	)
	f.DefineInteractionClass(InteractionMunitionDetonation,
		"EventIdentifier",
		"FiringObjectIdentifier",
		"TargetObjectIdentifier",
		"DetonationLocation",
		"DetonationResultCode",
		"MunitionType",
		"FinalVelocityVector",
		"QuantityFired",
	)
	f.DefineInteractionClass(InteractionTimeValue, "Time", "SimulationName")
	return f
}
