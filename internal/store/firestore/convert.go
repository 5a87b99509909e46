package firestore

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/genproto/googleapis/type/latlng"

	"github.com/roach88/firedesk/internal/codec"
)

const documentsMarker = "/documents/"

// relativePath strips the "projects/p/databases/d/documents/" prefix from a
// resource name.
func relativePath(name string) string {
	if i := strings.Index(name, documentsMarker); i >= 0 {
		return name[i+len(documentsMarker):]
	}
	return strings.Trim(name, "/")
}

// toSDK converts a native value to the SDK representation.
func (s *Store) toSDK(v any) (any, error) {
	switch x := v.(type) {
	case codec.Reference:
		ref := s.client.Doc(x.Path)
		if ref == nil {
			return nil, fmt.Errorf("invalid document reference %q", x.Path)
		}
		return ref, nil
	case *codec.Reference:
		return s.toSDK(*x)
	case codec.GeoPoint:
		return &latlng.LatLng{Latitude: x.Latitude, Longitude: x.Longitude}, nil
	case *codec.GeoPoint:
		return &latlng.LatLng{Latitude: x.Latitude, Longitude: x.Longitude}, nil
	case codec.Tombstone:
		return firestore.Delete, nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			c, err := s.toSDK(elem)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		return s.mapToSDK(x)
	default:
		return v, nil
	}
}

func (s *Store) mapToSDK(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, elem := range m {
		c, err := s.toSDK(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

// fromSDK converts a value returned by DocumentSnapshot.Data to its native
// form.
func fromSDK(v any) any {
	switch x := v.(type) {
	case *firestore.DocumentRef:
		if x == nil {
			return nil
		}
		return codec.Reference{Path: relativePath(x.Path)}
	case *latlng.LatLng:
		if x == nil {
			return nil
		}
		return codec.GeoPoint{Latitude: x.GetLatitude(), Longitude: x.GetLongitude()}
	case time.Time:
		return x.UTC().Truncate(time.Microsecond)
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = fromSDK(elem)
		}
		return out
	case map[string]any:
		return mapFromSDK(x)
	default:
		return v
	}
}

func mapFromSDK(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, elem := range m {
		out[k] = fromSDK(elem)
	}
	return out
}

func direction(d string) firestore.Direction {
	if d == "desc" {
		return firestore.Desc
	}
	return firestore.Asc
}
