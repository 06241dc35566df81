// pkg/core/actor.go
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// ActorID identifies an application actor. It is the string form of a UUID.
type ActorID string

// NewActorID allocates a fresh random actor id.
func NewActorID() ActorID {
	return ActorID(uuid.NewString())
}

// IsZero reports whether the id is unset.
func (a ActorID) IsZero() bool {
	return a == ""
}

func (a ActorID) String() string {
	return string(a)
}

// ActorType names the kind of application actor an object maps to.
type ActorType struct {
	Category string `json:"category" mapstructure:"category"`
	Name     string `json:"name" mapstructure:"name"`
}

// IsZero reports whether the actor type is unset.
func (t ActorType) IsZero() bool {
	return t.Category == "" && t.Name == ""
}

func (t ActorType) String() string {
	if t.Category == "" {
		return t.Name
	}
	return t.Category + "." + t.Name
}

// ParseActorType splits "category.name" on the last dot.
func ParseActorType(s string) ActorType {
	i := strings.LastIndex(s, ".")
	if i < 0 {
		return ActorType{Name: s}
	}
	return ActorType{Category: s[:i], Name: s[i+1:]}
}

// Vec3 is a three component vector used for positions, rotations and velocities.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// At returns the component at index i (0..2).
func (v Vec3) At(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Float32 rounds every component to float32 precision.
func (v Vec3) Float32() Vec3 {
	return Vec3{float64(float32(v.X)), float64(float32(v.Y)), float64(float32(v.Z))}
}

// ApproxEqual compares component-wise within tol.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

func (v Vec3) String() string {
	return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z)
}
