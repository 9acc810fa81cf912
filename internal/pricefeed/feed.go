// Package pricefeed is the market price provider. It fetches commodity
// prices from the agmarknet dataset on data.gov.in, normalises them from
// per-quintal to per-unit, and substitutes deterministic synthetic data
// whenever the feed returns nothing. Callers never see a feed error; the
// Provenance on every result says whether the data is live.
package pricefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// QuintalUnits is the number of units a feed price is quoted for.
const QuintalUnits = 100

// ArrivalDateLayout is the feed's arrival_date format.
const ArrivalDateLayout = "02/01/2006"

// Record is one row of the price feed.
type Record struct {
	State       string    `json:"state,omitempty"`
	District    string    `json:"district,omitempty"`
	Market      string    `json:"market"`
	Commodity   string    `json:"commodity,omitempty"`
	ModalPrice  flexFloat `json:"modal_price"` // per quintal
	ArrivalDate string    `json:"arrival_date"`
}

// PerUnit returns the modal price normalised to one unit.
func (r Record) PerUnit() float64 {
	return float64(r.ModalPrice) / QuintalUnits
}

// Arrival parses ArrivalDate.
func (r Record) Arrival() (time.Time, error) {
	return time.Parse(ArrivalDateLayout, strings.TrimSpace(r.ArrivalDate))
}

// flexFloat accepts both JSON numbers and numeric strings; the feed has
// served both over time.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" || string(data) == "NR" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse price %q: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}

func (f flexFloat) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', -1, 64)), nil
}

// Source returns feed records for a feed commodity name, newest first.
type Source interface {
	Records(ctx context.Context, commodity string, limit int) ([]Record, error)
}

// DataGovClient reads the agmarknet resource on api.data.gov.in.
type DataGovClient struct {
	baseURL    string
	resourceID string
	apiKey     string
	state      string
	client     *http.Client
}

// DataGovConfig configures DataGovClient.
type DataGovConfig struct {
	BaseURL    string
	ResourceID string
	APIKey     string
	State      string // state filter; empty = all states
	Timeout    time.Duration
}

// NewDataGovClient creates a feed client.
func NewDataGovClient(cfg DataGovConfig) *DataGovClient {
	return &DataGovClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		resourceID: cfg.ResourceID,
		apiKey:     cfg.APIKey,
		state:      cfg.State,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type dataGovResponse struct {
	Records []Record `json:"records"`
}

// Records fetches up to limit records sorted by arrival date, newest first.
func (c *DataGovClient) Records(ctx context.Context, commodity string, limit int) ([]Record, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("format", "json")
	params.Set("filters[commodity]", commodity)
	if c.state != "" {
		params.Set("filters[state]", c.state)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort[arrival_date]", "desc")

	addr := fmt.Sprintf("%s/resource/%s?%s", c.baseURL, c.resourceID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get response from price feed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed status %d", res.StatusCode)
	}

	var body dataGovResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price feed body: %w", err)
	}
	return body.Records, nil
}
