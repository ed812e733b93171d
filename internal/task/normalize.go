package task

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrMissingIdentifier is returned when no identifier field is present on a record.
var ErrMissingIdentifier = errors.New("task identifier not available")

// IdentifierFields is the probe order for the record identifier.
var IdentifierFields = []string{"id", "_id", "todoId", "uuid", "key"}

// CoordinateContainers are the nested objects searched for a position, in order.
var CoordinateContainers = []string{"location", "coords", "position", "geo"}

// AddressPaths is the probe order for the human-readable address.
var AddressPaths = [][]string{
	{"address"},
	{"addr"},
	{"direction"},
	{"direccion"},
	{"place"},
	{"placeName"},
	{"location", "address"},
	{"location", "name"},
	{"coords", "address"},
	{"position", "address"},
	{"geo", "address"},
}

// ImageURLFallbacks are probed after the configured image URL property.
var ImageURLFallbacks = []string{"image_url", "imageUrl"}

// IdentifierOf returns the first identifier field present, as a string.
func IdentifierOf(r Record) (string, error) {
	v, ok := firstPresent(r, IdentifierFields...)
	if !ok {
		return "", ErrMissingIdentifier
	}
	return stringify(v), nil
}

// Probe is a named extraction step for coordinates.
type Probe struct {
	Name    string
	Resolve func(Record) (Coordinates, bool)
}

// CoordinateProbes is the ordered list used by CoordinatesOf.
var CoordinateProbes = buildCoordinateProbes()

func buildCoordinateProbes() []Probe {
	probes := []Probe{
		{Name: "latitude/longitude", Resolve: func(r Record) (Coordinates, bool) {
			return pair(r["latitude"], r["longitude"])
		}},
		{Name: "lat/lng|lon", Resolve: func(r Record) (Coordinates, bool) {
			lon, _ := firstPresent(r, "lng", "lon")
			return pair(r["lat"], lon)
		}},
	}
	for _, name := range CoordinateContainers {
		key := name
		probes = append(probes,
			Probe{Name: key + ".latitude/longitude", Resolve: func(r Record) (Coordinates, bool) {
				n, ok := asMap(r[key])
				if !ok {
					return Coordinates{}, false
				}
				lat, _ := firstPresent(n, "latitude", "lat")
				lon, _ := firstPresent(n, "longitude", "lng", "lon")
				return pair(lat, lon)
			}},
			Probe{Name: key + ".coordinates[lon,lat]", Resolve: func(r Record) (Coordinates, bool) {
				n, ok := asMap(r[key])
				if !ok {
					return Coordinates{}, false
				}
				for _, field := range []string{"coordinates", "coord", "coords"} {
					arr, ok := n[field].([]any)
					if !ok || len(arr) == 0 {
						continue
					}
					if len(arr) < 2 {
						return Coordinates{}, false
					}
					return pair(arr[1], arr[0])
				}
				return Coordinates{}, false
			}},
			Probe{Name: key + " \"lat,lon\"", Resolve: func(r Record) (Coordinates, bool) {
				s, ok := r[key].(string)
				if !ok {
					return Coordinates{}, false
				}
				return coordsFromString(s)
			}},
		)
	}
	return probes
}

// CoordinatesOf returns the first fully resolved position on r.
// A record without a position yields ok == false, never an error.
func CoordinatesOf(r Record) (Coordinates, bool) {
	if r == nil {
		return Coordinates{}, false
	}
	for _, p := range CoordinateProbes {
		if c, ok := p.Resolve(r); ok {
			return c, true
		}
	}
	return Coordinates{}, false
}

// AddressOf returns the first non-empty address string on r.
func AddressOf(r Record) (string, bool) {
	for _, path := range AddressPaths {
		if s, ok := lookupString(r, path); ok {
			return s, true
		}
	}
	return "", false
}

// ImageURLOf returns the photo reference stored under prop or a known fallback.
func ImageURLOf(r Record, prop string) (string, bool) {
	keys := ImageURLFallbacks
	if prop != "" {
		keys = append([]string{prop}, ImageURLFallbacks...)
	}
	for _, k := range keys {
		if s, ok := r[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func pair(lat, lon any) (Coordinates, bool) {
	la, ok := number(lat)
	if !ok {
		return Coordinates{}, false
	}
	lo, ok := number(lon)
	if !ok {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: la, Longitude: lo}, true
}

func coordsFromString(s string) (Coordinates, bool) {
	if !strings.Contains(s, ",") {
		return Coordinates{}, false
	}
	parts := strings.Split(s, ",")
	return pair(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
}

func lookupString(m map[string]any, path []string) (string, bool) {
	s, ok := lookupRaw(m, path).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// FillAddress sets address on r unless r already holds a string under one of
// AddressPaths. A blank string returned by the backend is kept.
func FillAddress(r Record, addr string) {
	if addr == "" {
		return
	}
	for _, path := range AddressPaths {
		if _, ok := lookupRaw(r, path).(string); ok {
			return
		}
	}
	r["address"] = addr
}

// FillCoordinates sets latitude and longitude on r for each component r
// carries no value for. Values r already holds are kept, even when they do
// not form a usable position.
func FillCoordinates(r Record, c Coordinates) {
	if _, ok := CoordinatesOf(r); ok {
		return
	}
	if _, ok := firstPresent(r, "latitude", "lat"); !ok {
		r["latitude"] = c.Latitude
	}
	if _, ok := firstPresent(r, "longitude", "lng", "lon"); !ok {
		r["longitude"] = c.Longitude
	}
}

// FileURL returns a file URL for the local path p, made absolute.
func FileURL(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func lookupRaw(m map[string]any, path []string) any {
	var cur any = m
	for _, key := range path {
		obj, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}
