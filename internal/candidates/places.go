package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	PlacesBaseURL      = "https://maps.googleapis.com/maps/api/place"
	nearbySearchPath   = "/nearbysearch/json"
	photoPath          = "/photo"
	photoMaxWidth      = 400
	defaultPlacesLimit = 20
)

// PlacesConfig configures the Google Places nearby search.
type PlacesConfig struct {
	BaseURL string
	APIKey  string
	Radius  int
	Keyword string
	Limit   int
	Timeout time.Duration
}

// Places fetches restaurants near a location from Google Places.
type Places struct {
	cfg    PlacesConfig
	client *http.Client
}

func NewPlaces(cfg PlacesConfig) *Places {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PlacesBaseURL
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 1000
	}
	if cfg.Keyword == "" {
		cfg.Keyword = "restaurant"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultPlacesLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Places{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type nearbyResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Photos   []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
}

func (p *Places) FetchCandidates(ctx context.Context, location string) ([]Candidate, error) {
	if err := validateLocation(location); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("location", location)
	q.Set("radius", strconv.Itoa(p.cfg.Radius))
	q.Set("keyword", p.cfg.Keyword)
	q.Set("key", p.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+nearbySearchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("places API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var parsed nearbyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	switch parsed.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("places API returned %s: %s", parsed.Status, parsed.ErrorMessage)
	}

	out := make([]Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.PlaceID == "" {
			continue
		}
		c := Candidate{
			ID:          r.PlaceID,
			Name:        r.Name,
			Description: r.Vicinity,
		}
		if c.Description == "" {
			c.Description = DefaultDescription
		}
		if len(r.Photos) > 0 && r.Photos[0].PhotoReference != "" {
			c.PhotoURL = p.photoURL(r.Photos[0].PhotoReference)
		}
		out = append(out, c)
		if len(out) == p.cfg.Limit {
			break
		}
	}
	return out, nil
}

func (p *Places) photoURL(ref string) string {
	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(photoMaxWidth))
	q.Set("photoreference", ref)
	q.Set("key", p.cfg.APIKey)
	return p.cfg.BaseURL + photoPath + "?" + q.Encode()
}

func validateLocation(location string) error {
	lat, lng, ok := strings.Cut(location, ",")
	if !ok {
		return ErrInvalidLocation
	}
	latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || latF < -90 || latF > 90 {
		return ErrInvalidLocation
	}
	lngF, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil || lngF < -180 || lngF > 180 {
		return ErrInvalidLocation
	}
	return nil
}
