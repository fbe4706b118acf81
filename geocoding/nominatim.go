package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/resilience"
)

const (
	defaultNominatimURL       = "https://nominatim.openstreetmap.org"
	defaultNominatimUserAgent = "carefinder/1.0"
	nominatimAcceptLanguage   = "ar,en"
)

// NominatimConfig configures the OpenStreetMap Nominatim adapter.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	// Zoom selects address detail, 18 being building level.
	Zoom int
}

// Nominatim reverse-geocodes through an OpenStreetMap Nominatim server.
type Nominatim struct {
	baseURL   string
	userAgent string
	zoom      int
	client    *resilience.ResilientHTTPClient
	logger    *logging.Logger
}

// NewNominatim creates a Nominatim adapter using client for transport.
func NewNominatim(cfg NominatimConfig, client *resilience.ResilientHTTPClient, logger *logging.Logger) *Nominatim {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultNominatimUserAgent
	}
	if cfg.Zoom <= 0 || cfg.Zoom > 18 {
		cfg.Zoom = 18
	}
	if client == nil {
		client = resilience.NewResilientHTTPClient(resilience.DefaultResilientHTTPClientConfig("nominatim"))
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		zoom:      cfg.Zoom,
		client:    client,
		logger:    logging.OrNop(logger).WithComponent("nominatim"),
	}
}

type nominatimResponse struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// OSM address keys mapped onto component types, most specific first.
var nominatimKeys = []struct {
	key  string
	kind string
}{
	{"amenity", "point_of_interest"},
	{"building", "premise"},
	{"shop", "point_of_interest"},
	{"house_number", "street_number"},
	{"road", "route"},
	{"neighbourhood", "neighborhood"},
	{"quarter", "neighborhood"},
	{"suburb", "sublocality"},
	{"city_district", "administrative_area_level_3"},
	{"county", "administrative_area_level_2"},
	{"state_district", "administrative_area_level_2"},
	{"city", "locality"},
	{"town", "locality"},
	{"village", "locality"},
	{"state", "administrative_area_level_1"},
	{"country", "country"},
}

// ReverseGeocode calls the /reverse endpoint.
func (n *Nominatim) ReverseGeocode(ctx context.Context, p geo.Point) (*RawAddress, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", p.Lat))
	params.Set("lon", fmt.Sprintf("%f", p.Lng))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("zoom", fmt.Sprintf("%d", n.zoom))
	params.Set("accept-language", nominatimAcceptLanguage)

	header := http.Header{}
	header.Set("User-Agent", n.userAgent)
	header.Set("Accept", "application/json")

	resp, err := n.client.Get(ctx, n.baseURL+"/reverse?"+params.Encode(), header)
	if err != nil {
		return nil, resilience.ClassifyError(err, "nominatim")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.Provider(fmt.Sprintf("%d", resp.StatusCode),
			fmt.Sprintf("nominatim status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload nominatimResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, errors.CodeProvider, "decode nominatim response")
	}
	if payload.Error != "" {
		return nil, errors.NoResults(payload.Error)
	}

	raw := &RawAddress{FormattedAddress: payload.DisplayName}
	if payload.Name != "" {
		raw.Components = append(raw.Components, Component{LongName: payload.Name, Types: []string{"point_of_interest"}})
	}
	for _, k := range nominatimKeys {
		if v := strings.TrimSpace(payload.Address[k.key]); v != "" {
			c := Component{LongName: v, ShortName: v, Types: []string{k.kind}}
			if k.kind == "country" {
				c.ShortName = strings.ToUpper(payload.Address["country_code"])
			}
			raw.Components = append(raw.Components, c)
		}
	}

	n.logger.Debug("nominatim reverse geocode", "lat", p.Lat, "lng", p.Lng, "components", len(raw.Components))
	return raw, nil
}
