package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client calls the NER sidecar's /entities endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the sidecar at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + "/entities",
		http: hc,
	}
}

type entitiesRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type entitiesResponse struct {
	Entities []entity `json:"entities"`
}

type entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Persons returns the text of every entity the sidecar labels as a person
// (PERSON for the English models, PER for the Norwegian ones). Order and
// duplicates are as returned by the sidecar.
// It is safe for concurrent use.
func (c *Client) Persons(ctx context.Context, model, text string) ([]string, error) {
	body, err := json.Marshal(entitiesRequest{Model: model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	var persons []string
	for _, e := range result.Entities {
		if e.Label == "PERSON" || e.Label == "PER" {
			persons = append(persons, e.Text)
		}
	}
	return persons, nil
}
