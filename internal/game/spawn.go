package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SpawnRing hands out spawn points on a fixed circle around the origin,
// round-robin. Owned by the tick goroutine; not safe for concurrent use.
type SpawnRing struct {
	next int
}

func (s *SpawnRing) Next() mgl32.Vec3 {
	p := SpawnPointAt(s.next)
	s.next = (s.next + 1) % SpawnPoints
	return p
}

// SpawnPointAt returns the i'th ring position. Deterministic so tests and
// tools can predict spawn layout.
func SpawnPointAt(i int) mgl32.Vec3 {
	angle := 2 * math.Pi * float64(i%SpawnPoints) / SpawnPoints
	return mgl32.Vec3{
		SpawnRadius * float32(math.Cos(angle)),
		0,
		SpawnRadius * float32(math.Sin(angle)),
	}
}
