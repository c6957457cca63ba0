package opd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/opd-console/pkg/logging"
)

// Observer receives one callback per backend request.
type Observer interface {
	ObserveBackendCall(operation string, status int, seconds float64)
}

// Client is an HTTP client for the OPD booking backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	observer   Observer
	tracer     trace.Tracer
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout replaces the default request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver records per-request metrics.
func WithObserver(observer Observer) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a backend client. baseURL includes the API prefix,
// e.g. "http://localhost:8080/api".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logging.Default(),
		tracer: otel.Tracer("opd.internal.opd.client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateDoctor onboards a doctor. Name and specialization travel as query
// parameters.
func (c *Client) CreateDoctor(ctx context.Context, name, specialization string) (*Doctor, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("specialization", specialization)

	var doctor Doctor
	if err := c.do(ctx, "create_doctor", http.MethodPost, "/doctors?"+q.Encode(), nil, &doctor); err != nil {
		return nil, err
	}
	c.logger.Info("doctor created", "doctor_id", doctor.ID)
	return &doctor, nil
}

// CreateSlot creates a slot for a doctor.
func (c *Client) CreateSlot(ctx context.Context, req CreateSlotRequest) (*Slot, error) {
	var slot Slot
	if err := c.do(ctx, "create_slot", http.MethodPost, "/slots", req, &slot); err != nil {
		return nil, err
	}
	c.logger.Info("slot created", "doctor_id", req.DoctorID, "slot_id", slot.ID, "date", slot.Date)
	return &slot, nil
}

// BookToken places a booking on the doctor's first slot the backend can fit it in.
func (c *Client) BookToken(ctx context.Context, req BookingRequest) (*Token, error) {
	var token Token
	if err := c.do(ctx, "book_token", http.MethodPost, "/bookings", req, &token); err != nil {
		return nil, err
	}
	c.logger.Info("token booked", "doctor_id", req.DoctorID, "token_id", token.ID, "source", token.Source)
	return &token, nil
}

// ListSlots returns every slot of a doctor in backend order.
func (c *Client) ListSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, fmt.Errorf("opd: doctor id is required")
	}
	var slots []Slot
	if err := c.do(ctx, "list_slots", http.MethodGet, "/doctors/"+url.PathEscape(doctorID)+"/slots", nil, &slots); err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// DelaySlot shifts a slot's window by the given number of minutes.
func (c *Client) DelaySlot(ctx context.Context, slotID string, minutes int) error {
	path := "/slots/" + url.PathEscape(slotID) + "/delay?minutes=" + strconv.Itoa(minutes)
	return c.do(ctx, "delay_slot", http.MethodPost, path, nil, nil)
}

// CancelToken cancels an active token.
func (c *Client) CancelToken(ctx context.Context, tokenID string) error {
	return c.do(ctx, "cancel_token", http.MethodPost, "/tokens/"+url.PathEscape(tokenID)+"/cancel", nil, nil)
}

// ToggleNoShow flips a token between ACTIVE and NO_SHOW.
func (c *Client) ToggleNoShow(ctx context.Context, tokenID string) error {
	return c.do(ctx, "toggle_no_show", http.MethodPost, "/tokens/"+url.PathEscape(tokenID)+"/noshow", nil, nil)
}

// DeleteSlot removes a slot.
func (c *Client) DeleteSlot(ctx context.Context, slotID string) error {
	return c.do(ctx, "delete_slot", http.MethodDelete, "/slots/"+url.PathEscape(slotID), nil, nil)
}

// do sends one request. A non-nil body is JSON-encoded; a non-nil out receives
// the decoded 2xx response. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "opd.client."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("opd.operation", operation),
		))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("opd: %s: marshal request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("opd: %s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend request", "operation", operation, "method", method, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("opd: %s: request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	c.observe(operation, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, resp.Body)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Warn("backend rejected request",
			"operation", operation,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("opd: %s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) observe(operation string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendCall(operation, status, time.Since(start).Seconds())
}

// Ping reports whether the backend answers at all. Any HTTP response counts,
// since the backend exposes no dedicated health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("opd: ping: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opd: ping: %w", err)
	}
	resp.Body.Close()
	return nil
}
