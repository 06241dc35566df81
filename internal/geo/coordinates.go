package geo

import (
	"math"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// Matrix3 is a row-major 3x3 rotation matrix.
type Matrix3 [3][3]float64

// Identity3 returns the identity matrix.
func Identity3() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// MulVec returns m·v.
func (m Matrix3) MulVec(v core.Vec3) core.Vec3 {
	return core.Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m·o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// Transpose returns mᵀ, which is the inverse for rotation matrices.
func (m Matrix3) Transpose() Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// eulerZYX builds Rz(psi)·Ry(theta)·Rx(phi) from radians.
func eulerZYX(psi, theta, phi float64) Matrix3 {
	cy, sy := math.Cos(psi), math.Sin(psi)
	cp, sp := math.Cos(theta), math.Sin(theta)
	cr, sr := math.Cos(phi), math.Sin(phi)
	return Matrix3{
		{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr},
		{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr},
		{-sp, cp * sr, cp * cr},
	}
}

// anglesZYX is the inverse of eulerZYX.
func anglesZYX(m Matrix3) (psi, theta, phi float64) {
	sp := -m[2][0]
	sp = math.Max(-1, math.Min(1, sp))
	theta = math.Asin(sp)
	if math.Abs(sp) > 1-1e-12 {
		// gimbal lock: fold roll into yaw
		psi = math.Atan2(-m[0][1], m[1][1])
		return psi, theta, 0
	}
	psi = math.Atan2(m[1][0], m[0][0])
	phi = math.Atan2(m[2][1], m[2][2])
	return psi, theta, phi
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// Coordinates converts between the application's local cartesian frame
// (degrees for rotations) and the federation's remote frame (radians).
// The local origin sits at a configured remote location and orientation.
// Methods are pure for a given origin.
type Coordinates struct {
	origin   core.Vec3
	rotation Matrix3 // remote -> local
	inverse  Matrix3 // local -> remote
	geodetic bool
}

// NewCoordinates returns a converter with the origin at the remote origin
// and no rotation.
func NewCoordinates() *Coordinates {
	return &Coordinates{rotation: Identity3(), inverse: Identity3()}
}

// SetOriginLocation places the local origin at a remote position.
func (c *Coordinates) SetOriginLocation(remote core.Vec3) {
	c.origin = remote
	c.geodetic = false
}

// OriginLocation returns the remote position of the local origin.
func (c *Coordinates) OriginLocation() core.Vec3 {
	return c.origin
}

// SetOriginRotation orients the local frame in the remote frame by
// heading, pitch and roll in degrees.
func (c *Coordinates) SetOriginRotation(heading, pitch, roll float64) {
	c.inverse = eulerZYX(deg2rad(heading), deg2rad(pitch), deg2rad(roll))
	c.rotation = c.inverse.Transpose()
}

// SetGeoOrigin puts the local origin at a geodetic position with the local
// axes pointing east, north and up.
func (c *Coordinates) SetGeoOrigin(lat, lon, elevation float64) {
	c.origin = ECEFFromGeodetic(lat, lon, elevation)
	c.geodetic = true

	phi, lambda := deg2rad(lat), deg2rad(lon)
	sphi, cphi := math.Sin(phi), math.Cos(phi)
	slam, clam := math.Sin(lambda), math.Cos(lambda)

	// columns are the east, north and up unit vectors in ECEF
	c.inverse = Matrix3{
		{-slam, -sphi * clam, cphi * clam},
		{clam, -sphi * slam, cphi * slam},
		{0, cphi, sphi},
	}
	c.rotation = c.inverse.Transpose()
}

// Geodetic reports whether the origin was set from a geodetic position.
func (c *Coordinates) Geodetic() bool { return c.geodetic }

// OriginRotationMatrix maps remote vectors into the local frame.
func (c *Coordinates) OriginRotationMatrix() Matrix3 { return c.rotation }

// OriginRotationMatrixInverse maps local vectors into the remote frame.
func (c *Coordinates) OriginRotationMatrixInverse() Matrix3 { return c.inverse }

// ToRemoteTranslation converts a local position to the remote frame.
func (c *Coordinates) ToRemoteTranslation(local core.Vec3) core.Vec3 {
	return c.origin.Add(c.inverse.MulVec(local))
}

// ToLocalTranslation converts a remote position to the local frame.
func (c *Coordinates) ToLocalTranslation(remote core.Vec3) core.Vec3 {
	return c.rotation.MulVec(remote.Sub(c.origin))
}

// ToRemoteRotation converts local (psi, theta, phi) degrees into remote
// psi, theta, phi radians.
func (c *Coordinates) ToRemoteRotation(local core.Vec3) core.Vec3 {
	m := c.inverse.Mul(eulerZYX(deg2rad(local.X), deg2rad(local.Y), deg2rad(local.Z)))
	psi, theta, phi := anglesZYX(m)
	return core.Vec3{X: psi, Y: theta, Z: phi}
}

// ToLocalRotation converts remote radians into local (psi, theta, phi) degrees.
func (c *Coordinates) ToLocalRotation(psi, theta, phi float64) core.Vec3 {
	m := c.rotation.Mul(eulerZYX(psi, theta, phi))
	p, t, r := anglesZYX(m)
	return core.Vec3{X: rad2deg(p), Y: rad2deg(t), Z: rad2deg(r)}
}
