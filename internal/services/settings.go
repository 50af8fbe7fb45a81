package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/dronewatch/internal/models"
)

const settingsTable = "settings"

// PostgRESTSettings implements [SettingsTable] over the provider's REST interface.
// Requests carry the signed-in user's token so row-level policies apply.
type PostgRESTSettings struct {
	restURL string
	clients HTTPClientSource
}

// NewPostgRESTSettings creates a settings table client rooted at providerURL (the /rest/v1 suffix is added).
func NewPostgRESTSettings(providerURL string, clients HTTPClientSource) *PostgRESTSettings {
	return &PostgRESTSettings{
		restURL: strings.TrimSuffix(providerURL, "/") + "/rest/v1/" + settingsTable,
		clients: clients,
	}
}

// Select returns the rows owned by uid.
func (p *PostgRESTSettings) Select(ctx context.Context, uid string) ([]models.Settings, error) {
	q := url.Values{}
	q.Set("uid", "eq."+uid)
	q.Set("select", "*")

	var rows []models.Settings
	if err := p.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert adds a row.
func (p *PostgRESTSettings) Insert(ctx context.Context, row models.Settings) error {
	return p.do(ctx, http.MethodPost, nil, row, nil)
}

// Update sets the OBS server address on the rows owned by uid.
func (p *PostgRESTSettings) Update(ctx context.Context, uid, address string) error {
	q := url.Values{}
	q.Set("uid", "eq."+uid)
	return p.do(ctx, http.MethodPatch, q, map[string]string{"obs_server": address}, nil)
}

func (p *PostgRESTSettings) do(ctx context.Context, method string, q url.Values, body, out any) error {
	target := p.restURL
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := p.clients.HTTPClient(ctx).Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tableError(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	return nil
}
