package checkout

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/installment"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
)

const processInstallmentPath = "/api/v1/installments/process"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client posts installments to the storefront checkout over HTTP. Server
// errors are retried; a declined payment is an outcome, not an error.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	logger  *logger.Logger
}

// NewClient creates a checkout client from the checkout config section
func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Checkout.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Checkout.Timeout
	rc.Logger = logger.GetRetryableHTTPLogger()

	return &Client{
		baseURL: strings.TrimRight(cfg.Checkout.BaseURL, "/"),
		apiKey:  cfg.Checkout.APIKey,
		http:    rc,
		logger:  logger,
	}
}

// Process submits the installment and maps the storefront response to an outcome
func (c *Client) Process(ctx context.Context, inst *installment.Installment) (*installment.Outcome, error) {
	body, err := json.Marshal(newProcessInstallmentRequest(inst))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode installment for checkout").
			Mark(ierr.ErrInternal)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processInstallmentPath, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build checkout request").
			Mark(ierr.ErrInternal)
	}
	req.Header.Set(types.HeaderContentType, "application/json")
	req.Header.Set(types.HeaderIdempotencyKey, inst.ID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		req.Header.Set(types.HeaderRequestID, requestID)
	}
	if c.apiKey != "" {
		req.Header.Set(types.HeaderAuthorization, "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Errorw("checkout request failed",
			"installment_id", inst.ID,
			"subscription_id", inst.SubscriptionID,
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHint("Unable to reach the checkout service").
			WithReportableDetails(map[string]any{"installment_id": inst.ID}).
			Mark(ierr.ErrSystem)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read checkout response").
			Mark(ierr.ErrSystem)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed ProcessInstallmentResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Checkout returned an unreadable response").
				Mark(ierr.ErrSystem)
		}
		return parsed.toOutcome(), nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// the storefront rejected the order, e.g. out of stock or payment declined
		parsed := ProcessInstallmentResponse{Message: http.StatusText(resp.StatusCode)}
		if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Message == "" {
			parsed.Message = http.StatusText(resp.StatusCode)
		}
		parsed.Success = false
		c.logger.Infow("checkout declined installment",
			"installment_id", inst.ID,
			"status", resp.StatusCode,
			"message", parsed.Message,
		)
		return parsed.toOutcome(), nil

	default:
		return nil, ierr.NewErrorf("checkout responded with status %d", resp.StatusCode).
			WithHint("Checkout service returned an unexpected status").
			WithReportableDetails(map[string]any{
				"installment_id": inst.ID,
				"status":         resp.StatusCode,
			}).
			Mark(ierr.ErrSystem)
	}
}
