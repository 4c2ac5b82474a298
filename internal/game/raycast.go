package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// rayCapsule returns the smallest non-negative ray parameter hitting the
// capsule of radius r around segment a..b, or -1 on a miss. Analytic form
// after Inigo Quilez' capsule intersector; rd must be unit length.
func rayCapsule(ro, rd, a, b mgl32.Vec3, r float32) float32 {
	ba := b.Sub(a)
	oa := ro.Sub(a)

	baba := ba.Dot(ba)
	bard := ba.Dot(rd)
	baoa := ba.Dot(oa)
	rdoa := rd.Dot(oa)
	oaoa := oa.Dot(oa)

	qa := baba - bard*bard
	qb := baba*rdoa - baoa*bard
	qc := baba*oaoa - baoa*baoa - r*r*baba
	h := qb*qb - qa*qc
	if h < 0 {
		return -1
	}

	t := (-qb - sqrt32(h)) / qa
	if y := baoa + t*bard; y > 0 && y < baba {
		// Cylindrical side. A parallel ray divides by zero above, turns t
		// non-finite and falls through to the cap tests.
		if t >= 0 {
			return t
		}
		return -1
	}

	// Spherical caps, nearest entry of the two.
	best := float32(-1)
	for _, center := range [2]mgl32.Vec3{a, b} {
		oc := ro.Sub(center)
		cb := oc.Dot(rd)
		cc := oc.Dot(oc) - r*r
		ch := cb*cb - cc
		if ch < 0 {
			continue
		}
		if t := -cb - sqrt32(ch); t >= 0 && (best < 0 || t < best) {
			best = t
		}
	}
	return best
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
