package codec

import "github.com/roach88/firedesk/internal/paths"

// Reference points at a document by its slash-delimited path.
type Reference struct {
	Path string
}

// ID returns the last segment of the referenced path.
func (r Reference) ID() string {
	return paths.Base(r.Path)
}

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Tombstone instructs an update to remove a field. Only update operations
// accept it; it never appears in data read back from a store.
type Tombstone struct{}

// Delete is the field-deletion tombstone.
var Delete = Tombstone{}

// Firestore timestamp bounds: 0001-01-01T00:00:00Z to 9999-12-31T23:59:59.999999Z.
const (
	minTimestampMicros int64 = -62135596800000000
	maxTimestampMicros int64 = 253402300799999999
)

const (
	maxLatitude  = 90.0
	maxLongitude = 180.0
)
