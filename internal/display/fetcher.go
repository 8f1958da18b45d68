package display

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Fetcher returns the notification selected for a page, or nil when there is none.
type Fetcher interface {
	Fetch(ctx context.Context, pageID string) (*models.Notification, error)
}

// HTTPFetcher calls the public selection endpoint of the API.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewHTTPFetcher(baseURL string, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cb: circuitbreaker.NewCircuitBreaker("notification-api", log),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageID string) (*models.Notification, error) {
	result, err := f.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "GET",
			fmt.Sprintf("%s/api/v1/notifications/active?page=%s", f.baseURL, url.QueryEscape(pageID)), nil)
		if err != nil {
			return nil, err
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var failure models.ErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&failure)
			return nil, fmt.Errorf("selection endpoint responded %d: %s", resp.StatusCode, failure.Error)
		}
		var body models.ActiveNotificationResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		if !body.Success {
			return nil, fmt.Errorf("selection endpoint reported failure")
		}
		return body.Notification, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	n, _ := result.(*models.Notification)
	return n, nil
}
