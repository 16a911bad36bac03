package cinetpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
)

const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL         string
	APIKey          string
	SiteID          string
	NotifyURL       string
	ReturnURL       string
	CancelURL       string
	Lang            string
	Channels        string
	CustomerCountry string
	Timeout         time.Duration
}

// Client talks to a CinetPay-compatible checkout API. Every call is bounded
// by Config.Timeout.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("checkout/cinetpay"),
		metrics:    m,
		logger:     logger,
	}
}

func (c *Client) Initialize(ctx context.Context, req domain.PaymentInitRequest) (result *domain.PaymentInitResult, err error) {
	ctx, finish := c.observe(ctx, "initialize", req.TransactionID)
	defer func() { finish(err) }()

	metadata, err := json.Marshal(map[string]string{
		"order_id":     req.OrderID,
		"order_number": req.OrderNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	body := initRequest{
		APIKey:              c.cfg.APIKey,
		SiteID:              c.cfg.SiteID,
		TransactionID:       req.TransactionID,
		Amount:              req.Amount,
		Currency:            req.Currency,
		Description:         "Commande " + req.OrderNumber,
		NotifyURL:           withTransactionID(c.cfg.NotifyURL, req.TransactionID),
		ReturnURL:           withTransactionID(c.cfg.ReturnURL, req.TransactionID),
		CancelURL:           c.cfg.CancelURL,
		Channels:            c.cfg.Channels,
		Lang:                c.cfg.Lang,
		Metadata:            string(metadata),
		CustomerID:          req.CustomerID,
		CustomerName:        req.Customer.FirstName,
		CustomerSurname:     req.Customer.LastName,
		CustomerEmail:       req.Customer.Email,
		CustomerPhoneNumber: req.Customer.Phone,
		CustomerAddress:     req.Address,
		CustomerCity:        req.City,
		CustomerCountry:     c.cfg.CustomerCountry,
	}

	var resp initResponse
	if err := c.post(ctx, "/payment", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != initSuccessCode {
		return nil, fmt.Errorf("%w: initialization refused with code %s: %s %s", domain.ErrGateway, resp.Code, resp.Message, resp.Description)
	}
	if resp.Data.PaymentURL == "" {
		return nil, fmt.Errorf("%w: initialization response has no payment url", domain.ErrGateway)
	}

	return &domain.PaymentInitResult{
		PaymentURL:   resp.Data.PaymentURL,
		PaymentToken: resp.Data.PaymentToken,
	}, nil
}

func (c *Client) Check(ctx context.Context, transactionID string) (verified *domain.VerifiedPayment, err error) {
	ctx, finish := c.observe(ctx, "check", transactionID)
	defer func() { finish(err) }()

	body := checkRequest{
		APIKey:        c.cfg.APIKey,
		SiteID:        c.cfg.SiteID,
		TransactionID: transactionID,
	}

	var (
		resp checkResponse
		raw  json.RawMessage
	)
	if err := c.post(ctx, "/payment/check", body, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed check response: %v", domain.ErrGateway, err)
	}
	if resp.Data == nil || resp.Data.Status == "" {
		return nil, fmt.Errorf("%w: check response for %s has no status (code %s: %s)", domain.ErrGateway, transactionID, resp.Code, resp.Message)
	}

	return &domain.VerifiedPayment{
		TransactionID: transactionID,
		Status:        domain.ProviderStatus(strings.ToUpper(resp.Data.Status)),
		Amount:        int64(resp.Data.Amount),
		Currency:      resp.Data.Currency,
		PaymentMethod: resp.Data.PaymentMethod,
		Operator:      resp.Data.OperatorID,
		Message:       firstNonEmpty(resp.Data.Description, resp.Message),
		Raw:           raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %v", domain.ErrGatewayTimeout, path, err)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrGateway, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s: %v", domain.ErrGatewayTimeout, path, err)
		}
		return fmt.Errorf("%w: reading %s: %v", domain.ErrGateway, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned HTTP %d: %s", domain.ErrGateway, path, resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", domain.ErrGateway, path, err)
	}
	return nil
}

func (c *Client) observe(ctx context.Context, operation, transactionID string) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "cinetpay."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.transaction_id", transactionID)))
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		c.metrics.GatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
		outcome := "ok"
		switch {
		case errors.Is(err, domain.ErrGatewayTimeout):
			outcome = "timeout"
		case err != nil:
			outcome = "error"
		}
		c.metrics.GatewayRequests.WithLabelValues(operation, outcome).Inc()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("Payment provider call failed",
				zap.String("operation", operation),
				zap.String("transaction_id", transactionID),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		} else {
			c.logger.Debug("Payment provider call succeeded",
				zap.String("operation", operation),
				zap.String("transaction_id", transactionID),
				zap.Duration("elapsed", elapsed))
		}
		span.End()
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func withTransactionID(raw, transactionID string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("transaction_id", transactionID)
	u.RawQuery = q.Encode()
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
