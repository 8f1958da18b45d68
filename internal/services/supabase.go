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
	"time"

	"github.com/franzego/partnernotify/internal/config"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// SupabaseClient talks to the PostgREST endpoint of a Supabase project.
type SupabaseClient struct {
	baseURL    string
	table      string
	serviceKey string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewSupabaseClient(cfg config.SupabaseConfig, log *zap.Logger) *SupabaseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SupabaseClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		table:      cfg.Table,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:  circuitbreaker.NewCircuitBreaker("supabase", log),
		log: log,
	}
}

type restResult struct {
	status int
	body   []byte
}

// do runs one request through the breaker. Transport failures and 5xx
// responses count against the breaker; everything else is returned as-is.
func (s *SupabaseClient) do(ctx context.Context, method string, query url.Values, payload interface{}) (restResult, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return restResult{}, fmt.Errorf("encode %s body: %w", method, err)
		}
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(s.table), query.Encode())

	result, err := s.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", s.serviceKey)
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if method != http.MethodGet {
			req.Header.Set("Prefer", "return=representation")
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("supabase responded %d: %s", resp.StatusCode, truncate(raw))
		}
		return restResult{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		s.log.Error("supabase request failed",
			zap.String("method", method),
			zap.String("table", s.table),
			zap.Error(err),
		)
		return restResult{}, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return result.(restResult), nil
}

func (s *SupabaseClient) rows(ctx context.Context, method string, query url.Values, payload interface{}) ([]models.Notification, error) {
	res, err := s.do(ctx, method, query, payload)
	if err != nil {
		return nil, err
	}
	if res.status >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: supabase responded %d: %s", classify(res.status), res.status, truncate(res.body))
	}
	var out []models.Notification
	if len(res.body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(res.body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode rows: %v", models.ErrUpstream, err)
	}
	return out, nil
}

func (s *SupabaseClient) ListActive(ctx context.Context) ([]models.Notification, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("is_active", "eq.true")
	q.Set("order", "created_at.desc")
	return s.rows(ctx, http.MethodGet, q, nil)
}

func (s *SupabaseClient) List(ctx context.Context) ([]models.Notification, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	return s.rows(ctx, http.MethodGet, q, nil)
}

func (s *SupabaseClient) Get(ctx context.Context, id string) (*models.Notification, error) {
	q := byID(id)
	q.Set("select", "*")
	return first(s.rows(ctx, http.MethodGet, q, nil))
}

func (s *SupabaseClient) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	return first(s.rows(ctx, http.MethodPost, url.Values{}, req))
}

func (s *SupabaseClient) Update(ctx context.Context, id string, req models.UpdateNotificationRequest) (*models.Notification, error) {
	return first(s.rows(ctx, http.MethodPatch, byID(id), req))
}

func (s *SupabaseClient) Delete(ctx context.Context, id string) error {
	_, err := first(s.rows(ctx, http.MethodDelete, byID(id), nil))
	return err
}

func (s *SupabaseClient) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	res, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return err
	}
	if res.status >= http.StatusBadRequest {
		return fmt.Errorf("supabase responded %d", res.status)
	}
	return nil
}

// classify maps a PostgREST client error to a sentinel. Only request
// validation and constraint failures are the caller's fault; auth and
// missing-table errors mean the service itself is misconfigured.
func classify(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return models.ErrInvalidInput
	default:
		return models.ErrUpstream
	}
}

func byID(id string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return q
}

func first(list []models.Notification, err error) (*models.Notification, error) {
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, models.ErrNotFound
	}
	return &list[0], nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
