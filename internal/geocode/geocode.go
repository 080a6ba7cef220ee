// Package geocode resolves a team's free-text "full_location" string to
// place metadata via the Google Places API, backed by the locations table
// so a location is ever looked up once (§6 "locations(loc_normalized,
// data_json)", LookupMapLocations worker).
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/albapepper/chron/internal/httpclient"
)

const placesBaseURL = "https://places.googleapis.com/v1/places"

// Normalize canonicalizes a free-text location for use as a lookup key:
// lowercase then NFKC-normalized, so visually-identical strings with
// different Unicode representations collide to the same key.
func Normalize(s string) string {
	return norm.NFKC.String(strings.ToLower(s))
}

// Client queries the Google Places API for a location's coordinates and
// address metadata.
type Client struct {
	http   *httpclient.Client
	apiKey string
}

// New builds a geocode client. apiKey is the Places API key; New returns nil
// if apiKey is empty, signalling that lookups are disabled.
func New(http *httpclient.Client, apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{http: http, apiKey: apiKey}
}

type autocompleteRequest struct {
	Input                string `json:"input"`
	IncludedPrimaryTypes string `json:"includedPrimaryTypes"`
	SessionToken         string `json:"sessionToken"`
}

type autocompleteResponse struct {
	Suggestions []struct {
		PlacePrediction struct {
			PlaceID string `json:"placeId"`
			Text    struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"placePrediction"`
	} `json:"suggestions"`
}

// Lookup resolves a free-text location to place metadata, or nil if the
// Places API has no match. The returned bytes are the raw Place Details
// JSON as received, suitable for storing directly in locations.data_json.
func (c *Client) Lookup(ctx context.Context, location string) (json.RawMessage, error) {
	session := uuid.NewString()

	reqBody, err := json.Marshal(autocompleteRequest{
		Input:                location,
		IncludedPrimaryTypes: "(cities)",
		SessionToken:         session,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal autocomplete request: %w", err)
	}

	resp, err := c.http.PostJSON(ctx, placesBaseURL+":autocomplete", map[string]string{
		"X-Goog-Api-Key":   c.apiKey,
		"X-Goog-FieldMask": "suggestions.placePrediction.placeId,suggestions.placePrediction.text.text",
	}, reqBody)
	if err != nil {
		return nil, fmt.Errorf("places autocomplete: %w", err)
	}

	var autocomplete autocompleteResponse
	if err := json.Unmarshal(resp.Body, &autocomplete); err != nil {
		return nil, fmt.Errorf("decode autocomplete response: %w", err)
	}
	if len(autocomplete.Suggestions) == 0 {
		return nil, nil
	}

	placeID := autocomplete.Suggestions[0].PlacePrediction.PlaceID
	detail, ok, err := c.placeDetails(ctx, placeID, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return detail, nil
}

func (c *Client) placeDetails(ctx context.Context, placeID, session string) (json.RawMessage, bool, error) {
	url := fmt.Sprintf("%s/%s?sessionToken=%s", placesBaseURL, placeID, session)
	resp, err := c.http.FetchWithHeaders(ctx, url, map[string]string{
		"X-Goog-Api-Key":   c.apiKey,
		"X-Goog-FieldMask": "id,location,formattedAddress,addressComponents,shortFormattedAddress,postalAddress,types",
	})
	if err != nil {
		var statusErr httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == 404 {
			return nil, false, nil
		}
		return nil, false, err
	}
	return json.RawMessage(resp.Body), true, nil
}
