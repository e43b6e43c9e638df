package structure

import "math"

func sub(a, b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func dot(a, b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(a Vec3) float64 { return math.Sqrt(dot(a, a)) }

// Dihedral returns the torsion angle a-b-c-d in degrees, in (-180, 180].
// Collinear input gives 0.
func Dihedral(a, b, c, d Vec3) float64 {
	b1 := sub(b, a)
	b2 := sub(c, b)
	b3 := sub(d, c)

	n1 := cross(b1, b2)
	n2 := cross(b2, b3)

	y := norm(b2) * dot(b1, n2)
	x := dot(n1, n2)
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg <= -180 {
		deg += 360
	}
	return deg
}
