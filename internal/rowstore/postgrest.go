package rowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ionizer_portal/platform/logger"
)

const singularMediaType = "application/vnd.pgrst.object+json"

// PostgREST queries the REST gateway of the data service.
type PostgREST struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	schema     Schema
	log        *logger.Logger
}

// NewPostgREST creates a backend for the gateway at baseURL (e.g. https://x.example.co/rest/v1).
func NewPostgREST(baseURL, anonKey string, schema Schema, log *logger.Logger) *PostgREST {
	return &PostgREST{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		schema:     schema,
		log:        log,
	}
}

// QueryOne fetches a single row. A missing row yields an *Error with CodeNoRows.
func (p *PostgREST) QueryOne(ctx context.Context, table string, filter Filter, dest any) error {
	if err := p.schema.check(table, filter.Column); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("select", "*")
	params.Set(filter.Column, "eq."+filter.Value)
	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(table), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	bearer := AccessToken(ctx)
	if bearer == "" {
		bearer = p.anonKey
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", singularMediaType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Error("data service request failed", "error", err, "table", table)
		return fmt.Errorf("data service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rowErr := &Error{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(data, rowErr); err != nil || rowErr.Message == "" {
			rowErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			p.log.Error("data service upstream error", "status", resp.StatusCode, "table", table, "code", rowErr.Code)
		}
		return rowErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s row: %w", table, err)
	}
	return nil
}

var _ Querier = (*PostgREST)(nil)
