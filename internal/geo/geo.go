package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/hlabridge/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Positions of geodetically anchored actors are stored as 3857 so SQLite and
// PostGIS tables share one representation. Actors in a purely cartesian
// frame keep their local XYZ.

// ErrInvalidCoordinates is returned when a conversion yields no usable position
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const (
	epsgWGS84      = 4326
	epsgGeocentric = 4978
	epsgWebMerc    = 3857
)

// WGS84 ellipsoid
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
)

// ECEFFromGeodetic converts latitude/longitude degrees and ellipsoidal
// height to earth-centered earth-fixed metres.
func ECEFFromGeodetic(lat, lon, height float64) core.Vec3 {
	f := wgs84.EPSG().Transform(epsgWGS84, epsgGeocentric)
	x, y, z := f(lon, lat, height)
	if !math.IsNaN(x) && !math.IsNaN(y) && !math.IsNaN(z) {
		return core.Vec3{X: x, Y: y, Z: z}
	}

	e2 := flattening * (2 - flattening)
	phi, lambda := deg2rad(lat), deg2rad(lon)
	n := semiMajorAxis / math.Sqrt(1-e2*math.Sin(phi)*math.Sin(phi))
	return core.Vec3{
		X: (n + height) * math.Cos(phi) * math.Cos(lambda),
		Y: (n + height) * math.Cos(phi) * math.Sin(lambda),
		Z: (n*(1-e2) + height) * math.Sin(phi),
	}
}

// GeodeticFromECEF converts geocentric metres to longitude, latitude and height.
func GeodeticFromECEF(p core.Vec3) (lon, lat, height float64, err error) {
	f := wgs84.EPSG().Transform(epsgGeocentric, epsgWGS84)
	lon, lat, height = f(p.X, p.Y, p.Z)
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	return lon, lat, height, nil
}

// Coords3857From4326 creates a web mercator point from a longitude, latitude
// and elevation.
func Coords3857From4326(
	longitude float64,
	latitude float64,
	elevation float64,
) (
	point geom.Point,
	err error,
) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(epsgWGS84, epsgWebMerc)
	x, y, _ := f(longitude, latitude, 0)
	if math.IsNaN(x) || math.IsNaN(y) {
		return geom.NewEmptyPoint(geom.DimXYZ), ErrInvalidCoordinates
	}
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    elevation,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return point, nil
}

// PointFromVec3 wraps a cartesian position as an XYZ point. Non-finite
// positions give an empty point.
func PointFromVec3(v core.Vec3) geom.Point {
	p, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Y},
			Z:    v.Z,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ)
	}
	return p
}

// StoragePoint converts a local position into the point stored for it.
// With a geodetic origin the position is projected to 3857, otherwise the
// local XYZ is kept.
func (c *Coordinates) StoragePoint(local core.Vec3) geom.Point {
	if !c.geodetic {
		return PointFromVec3(local)
	}
	lon, lat, h, err := GeodeticFromECEF(c.ToRemoteTranslation(local))
	if err != nil {
		return PointFromVec3(local)
	}
	p, err := Coords3857From4326(lon, lat, h)
	if err != nil {
		return PointFromVec3(local)
	}
	return p
}
