// README: Common identifier and geographic value objects shared across modules.
package types

import (
	"crypto/rand"
	"encoding/hex"
)

type ID string

// NewID returns a random 32-char hex identifier.
func NewID() ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return ID(hex.EncodeToString(b[:]))
}

// Point is a WGS84 coordinate pair. Entities whose location is unknown carry
// a nil *Point rather than a zero value, so (0,0) stays a legal coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the pair lies inside the WGS84 ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
