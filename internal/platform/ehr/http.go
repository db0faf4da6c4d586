package ehr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/memo"
)

type HTTPConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// HTTPClient is the JSON/HTTP EHR client. Availability reads go through a
// memo cache so repeated calendar views share upstream calls.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	slots   *memo.Cache[[]Slot]
	logger  zerolog.Logger
}

func NewHTTPClient(cfg HTTPConfig, store memo.Store, logger zerolog.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if store == nil {
		store = memo.NewMemoryStore()
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		slots: memo.New[[]Slot](store, memo.Options{
			TTL:         cfg.CacheTTL,
			LoadTimeout: cfg.Timeout,
			Logger:      logger,
		}),
		logger: logger,
	}
}

func (c *HTTPClient) Availability(ctx context.Context, req AvailabilityRequest) ([]Slot, error) {
	ids := append([]string(nil), req.ProviderIDs...)
	sort.Strings(ids)

	q := url.Values{}
	q.Set("date", req.Date)
	if len(ids) > 0 {
		q.Set("provider_ids", strings.Join(ids, ","))
	}
	path := "/availability?" + q.Encode()

	return c.slots.Get(ctx, memo.Key(http.MethodGet, path), func(ctx context.Context) ([]Slot, error) {
		var resp struct {
			Slots []Slot `json:"slots"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Slots, nil
	})
}

func (c *HTTPClient) SearchPatients(ctx context.Context, query string) ([]Patient, error) {
	var resp struct {
		Patients []Patient `json:"patients"`
	}
	if err := c.do(ctx, http.MethodGet, "/patients?"+url.Values{"q": {query}}.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patients, nil
}

func (c *HTTPClient) BookAppointment(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}
	var conf Confirmation
	err := c.do(ctx, http.MethodPost, "/appointments", req, &conf)
	// Success and a refused slot both mean cached calendars are out of date.
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		if perr := c.slots.Purge(ctx); perr != nil {
			c.logger.Warn().Err(perr).Msg("availability cache purge failed")
		}
	}
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ehr %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("ehr request")

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrInvalid, strings.TrimSpace(string(msg)))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ehr response: %w", err)
	}
	return nil
}
