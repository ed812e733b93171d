// Package geocode turns coordinates into a place description using a Nominatim server.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geotask/internal/task"
)

// UserAgent identifies the client to Nominatim, which rejects anonymous requests.
const UserAgent = "geotask/1.0"

// ErrNoResult is returned when the server knows no place at the position.
var ErrNoResult = errors.New("no place found")

// ReverseGeocoder resolves coordinates to an address line.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c task.Coordinates) (string, error)
}

// ReverseResponse is the subset of a Nominatim /reverse response we read.
type ReverseResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		Pedestrian  string `json:"pedestrian"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Region      string `json:"region"`
		Country     string `json:"country"`
	} `json:"address"`
}

// Format joins street, name, city, region and country with ", ", skipping empty
// parts and a name that repeats the street.
func (r *ReverseResponse) Format() string {
	a := r.Address
	street := firstNonEmpty(a.Road, a.Pedestrian)
	if street != "" && a.HouseNumber != "" {
		street += " " + a.HouseNumber
	}
	name := r.Name
	if name == a.Road || name == a.Pedestrian {
		name = ""
	}
	parts := []string{
		street,
		name,
		firstNonEmpty(a.City, a.Town, a.Village),
		firstNonEmpty(a.State, a.Region),
		a.Country,
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// Nominatim is a ReverseGeocoder backed by a Nominatim-compatible server.
type Nominatim struct {
	BaseURL  string
	Language string
	HTTP     *http.Client
}

// NewNominatim creates a client for baseURL, e.g. https://nominatim.openstreetmap.org.
func NewNominatim(baseURL string) *Nominatim {
	return &Nominatim{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

// Reverse implements ReverseGeocoder.
func (n *Nominatim) Reverse(ctx context.Context, c task.Coordinates) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	if n.Language != "" {
		params.Set("accept-language", n.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	hc := n.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: unexpected status: %s", resp.Status)
	}

	var body ReverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}
	addr := body.Format()
	if addr == "" {
		return "", ErrNoResult
	}
	return addr, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
