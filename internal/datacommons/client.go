// Package datacommons is a thin client for the Data Commons REST API v2.
// It covers exactly three read paths: place-name resolution, variable
// listing, and observation lookup for the population-count variable.
// Every method performs a single request; failures propagate to the
// caller without retry.
package datacommons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dcagent/internal/logging"
)

const (
	// DefaultBaseURL is the public Data Commons API v2 endpoint family.
	DefaultBaseURL = "https://api.datacommons.org/v2"

	// PopulationVariable is the fixed metric queried by PopulationCount.
	PopulationVariable = "Count_Person"

	// LatestDate asks the service for the most recent observation.
	LatestDate = "LATEST"

	// maxVariablesPerPlace caps how many variable descriptors are
	// reported for a single place.
	maxVariablesPerPlace = 10

	// resolveProperty walks from a free-text description to a DCID.
	resolveProperty = "<-description->dcid"
)

// Config holds client construction parameters.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the Data Commons API. It is stateless: each method opens
// one request/response cycle and nothing is cached between calls.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Data Commons client with default endpoint and timeout.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a Data Commons client with custom config.
func NewClientWithConfig(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Resolve looks up the DCID for a free-text place name.
// Returns the first candidate of the first matching entity, or
// ErrPlaceNotFound when the service reports no candidates.
func (c *Client) Resolve(ctx context.Context, place string) (string, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return "", ErrEmptyPlace
	}

	params := url.Values{}
	params.Set("nodes", place)
	params.Set("property", resolveProperty)

	start := time.Now()
	var resp resolveResponse
	if err := c.get(ctx, "/resolve", params, &resp); err != nil {
		return "", fmt.Errorf("resolving %q: %w", place, err)
	}

	for _, entity := range resp.Entities {
		for _, candidate := range entity.Candidates {
			if candidate.DCID != "" {
				logging.DataCommons("Resolve: %q -> %s in %v", place, candidate.DCID, time.Since(start))
				return candidate.DCID, nil
			}
		}
	}

	logging.DataCommons("Resolve: %q -> no candidates in %v", place, time.Since(start))
	return "", fmt.Errorf("%w: %q", ErrPlaceNotFound, place)
}

// AvailableVariables lists the statistical variables known for each place,
// truncated to 10 per place in service response order. Every requested
// DCID is present in the result, possibly with an empty list.
func (c *Client) AvailableVariables(ctx context.Context, dcids []string) (map[string][]string, error) {
	dcids = cleanDCIDs(dcids)
	if len(dcids) == 0 {
		return nil, ErrNoDCIDs
	}

	params := url.Values{}
	params.Set("date", LatestDate)
	for _, dcid := range dcids {
		params.Add("entity.dcids", dcid)
	}
	params.Add("select", "entity")
	params.Add("select", "variable")

	start := time.Now()
	var resp observationResponse
	if err := c.get(ctx, "/observation", params, &resp); err != nil {
		return nil, fmt.Errorf("listing variables for %s: %w", strings.Join(dcids, ","), err)
	}

	result := make(map[string][]string, len(dcids))
	for _, dcid := range dcids {
		result[dcid] = []string{}
	}
	// Walk variables in service response order so the 10 kept per place
	// are the first 10 the service reported.
	for _, variable := range resp.ByVariable.Names() {
		for dcid := range resp.ByVariable.Get(variable).ByEntity {
			vars, ok := result[dcid]
			if !ok || len(vars) >= maxVariablesPerPlace {
				continue
			}
			result[dcid] = append(vars, variable)
		}
	}

	logging.DataCommons("AvailableVariables: %d places, %d variables in %v",
		len(dcids), resp.ByVariable.Len(), time.Since(start))
	return result, nil
}

// PopulationCount fetches the Count_Person observation for each place at
// the given date (LatestDate when empty). The result has exactly one
// Observation per requested DCID, preserving input order; places without
// data are marked HasData=false rather than omitted.
func (c *Client) PopulationCount(ctx context.Context, dcids []string, date string) ([]Observation, error) {
	dcids = cleanDCIDs(dcids)
	if len(dcids) == 0 {
		return nil, ErrNoDCIDs
	}
	date = strings.TrimSpace(date)
	if date == "" {
		date = LatestDate
	}

	params := url.Values{}
	params.Set("date", date)
	for _, dcid := range dcids {
		params.Add("entity.dcids", dcid)
	}
	params.Add("variable.dcids", PopulationVariable)
	params.Add("select", "entity")
	params.Add("select", "variable")
	params.Add("select", "value")
	params.Add("select", "date")

	start := time.Now()
	var resp observationResponse
	if err := c.get(ctx, "/observation", params, &resp); err != nil {
		return nil, fmt.Errorf("fetching population for %s: %w", strings.Join(dcids, ","), err)
	}

	byEntity := resp.ByVariable.Get(PopulationVariable).ByEntity

	result := make([]Observation, 0, len(dcids))
	for _, dcid := range dcids {
		obs := Observation{DCID: dcid, Variable: PopulationVariable}
		// Facets are ordered by source preference; take the first
		// facet that actually carries an observation.
		for _, facet := range byEntity[dcid].OrderedFacets {
			if len(facet.Observations) == 0 {
				continue
			}
			obs.Date = facet.Observations[0].Date
			obs.Value = facet.Observations[0].Value
			obs.HasData = true
			break
		}
		result = append(result, obs)
	}

	logging.DataCommons("PopulationCount: %d places, date=%s in %v", len(dcids), date, time.Since(start))
	return result, nil
}

// get issues one GET request against the API and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// cleanDCIDs trims whitespace and drops empty entries, preserving order.
func cleanDCIDs(dcids []string) []string {
	result := make([]string, 0, len(dcids))
	for _, dcid := range dcids {
		dcid = strings.TrimSpace(dcid)
		if dcid != "" {
			result = append(result, dcid)
		}
	}
	return result
}
