// Package cloud is the HTTP client for the merchant printer backend.
// Every call returns either data or an *models.APIError; transport and
// decoding failures are wrapped into the same error shape so callers
// never need to distinguish how a request failed.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/models"
)

// Client talks to the merchant printer API. MerchantID is injected at
// construction, never read from ambient state.
type Client struct {
	baseURL    string
	merchantID string
	token      string
	httpClient *http.Client
}

// Config holds client construction parameters.
type Config struct {
	BaseURL    string
	MerchantID string
	Token      string
	Timeout    time.Duration
}

// NewClient creates a merchant API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MerchantID returns the configured merchant identity.
func (c *Client) MerchantID() string {
	return c.merchantID
}

// envelope is the uniform response wrapper of the backend.
type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data,omitempty"`
	Error   *models.APIError `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.merchantID == "" {
		return &models.APIError{Code: models.ErrCodeNoMerchantID, Message: "no merchant id configured"}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &models.APIError{Code: models.ErrCodeBadResponse, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + "/merchants/" + c.merchantID + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &models.APIError{Code: models.ErrCodeNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Merchant API request failed")
		return &models.APIError{Code: models.ErrCodeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &models.APIError{
			Code:    models.ErrCodeBadResponse,
			Message: fmt.Sprintf("decode response (status %d): %v", resp.StatusCode, err),
		}
	}

	if !env.Success {
		if env.Error != nil {
			return env.Error
		}
		return &models.APIError{
			Code:    models.ErrCodeBadResponse,
			Message: fmt.Sprintf("request failed with status %d", resp.StatusCode),
		}
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &models.APIError{Code: models.ErrCodeBadResponse, Message: fmt.Sprintf("decode data: %v", err)}
		}
	}
	return nil
}

// ListPrinters fetches the remote printer list plus the remote active
// printer selection.
func (c *Client) ListPrinters(ctx context.Context) (*models.ListPrintersResponse, error) {
	var out models.ListPrintersResponse
	if err := c.do(ctx, http.MethodGet, "/printers", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePrinter creates a remote record for a locally known printer.
func (c *Client) CreatePrinter(ctx context.Context, req models.CreatePrinterRequest) (*models.PrinterAPI, error) {
	var out models.PrinterAPI
	if err := c.do(ctx, http.MethodPost, "/printers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrinter pushes a partial settings update.
func (c *Client) UpdatePrinter(ctx context.Context, id string, req models.UpdatePrinterRequest) (*models.PrinterAPI, error) {
	var out models.PrinterAPI
	if err := c.do(ctx, http.MethodPut, "/printers/"+id, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivatePrinter marks a printer active on the server.
func (c *Client) ActivatePrinter(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/printers/"+id+"/activate", nil, nil)
}

// UpdateConnection reports live connection state. The backend models
// "live right now" separately from configured properties, hence the
// dedicated endpoint.
func (c *Client) UpdateConnection(ctx context.Context, id string, req models.UpdateConnectionRequest) error {
	return c.do(ctx, http.MethodPut, "/printers/"+id+"/connection", req, nil)
}

// DeletePrinter removes the remote record.
func (c *Client) DeletePrinter(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/printers/"+id, nil, nil)
}
