package ephem

import "math"

// Vec3 is an inertial (J2000) vector in kilometres or kilometres per second.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(o Vec3) float64 { return v.Sub(o).Norm() }

// Unit returns v scaled to length one, or the zero vector.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Angle returns the angle between a and b in radians, in [0, pi]. The
// atan2 form stays accurate for nearly parallel vectors.
func Angle(a, b Vec3) float64 {
	if a.Norm() == 0 || b.Norm() == 0 {
		return 0
	}
	return math.Atan2(a.Cross(b).Norm(), a.Dot(b))
}

// angularRadius is the half-angle subtended by a sphere of radius r at
// distance d.
func angularRadius(r, d float64) float64 {
	if r <= 0 {
		return 0
	}
	if d <= r {
		return math.Pi / 2
	}
	return math.Asin(r / d)
}
