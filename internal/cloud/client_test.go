package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/laundrypos/printer-server/internal/models"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{
		BaseURL:    srv.URL,
		MerchantID: "merchant-1",
		Token:      "tok-123",
	})
	return c, srv
}

func TestNoMerchantID(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused.invalid"})

	_, err := c.ListPrinters(context.Background())
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v; want *models.APIError", err)
	}
	if apiErr.Code != models.ErrCodeNoMerchantID {
		t.Errorf("code = %q; want NO_MERCHANT_ID", apiErr.Code)
	}
}

func TestListPrinters(t *testing.T) {
	var gotPath, gotAuth string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"printers": []map[string]interface{}{
					{"id": "srv-1", "deviceId": "AA:BB", "name": "Front Desk", "paperSize": "58mm"},
				},
				"activePrinter": map[string]interface{}{"id": "srv-1", "deviceId": "AA:BB"},
			},
		})
	})
	defer srv.Close()

	out, err := c.ListPrinters(context.Background())
	if err != nil {
		t.Fatalf("ListPrinters() error: %v", err)
	}
	if gotPath != "/merchants/merchant-1/printers" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(out.Printers) != 1 || out.Printers[0].DeviceID != "AA:BB" {
		t.Errorf("printers = %+v", out.Printers)
	}
	if out.ActivePrinter == nil || out.ActivePrinter.ID != "srv-1" {
		t.Errorf("active = %+v", out.ActivePrinter)
	}
}

func TestCreatePrinter(t *testing.T) {
	var gotMethod string
	var gotBody models.CreatePrinterRequest
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": "srv-9", "deviceId": gotBody.DeviceID},
		})
	})
	defer srv.Close()

	created, err := c.CreatePrinter(context.Background(), models.CreatePrinterRequest{
		Name:      "Front Desk",
		DeviceID:  "AA:BB",
		PaperSize: models.Paper58mm,
	})
	if err != nil {
		t.Fatalf("CreatePrinter() error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q; want POST", gotMethod)
	}
	if gotBody.DeviceID != "AA:BB" {
		t.Errorf("request body = %+v", gotBody)
	}
	if created.ID != "srv-9" {
		t.Errorf("created = %+v", created)
	}
}

func TestBackendErrorPassedThrough(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "PRINTER_EXISTS", "message": "device already registered"},
		})
	})
	defer srv.Close()

	_, err := c.CreatePrinter(context.Background(), models.CreatePrinterRequest{DeviceID: "AA:BB"})
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v; want *models.APIError", err)
	}
	if apiErr.Code != "PRINTER_EXISTS" || apiErr.Message != "device already registered" {
		t.Errorf("error = %+v; want backend error verbatim", apiErr)
	}
}

func TestMalformedResponse(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	})
	defer srv.Close()

	_, err := c.ListPrinters(context.Background())
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v; want *models.APIError", err)
	}
	if apiErr.Code != models.ErrCodeBadResponse {
		t.Errorf("code = %q; want MALFORMED_RESPONSE", apiErr.Code)
	}
}

func TestFailureWithoutErrorBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	})
	defer srv.Close()

	err := c.ActivatePrinter(context.Background(), "srv-1")
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v; want *models.APIError", err)
	}
	if apiErr.Code != models.ErrCodeBadResponse {
		t.Errorf("code = %q; want MALFORMED_RESPONSE", apiErr.Code)
	}
}

func TestNetworkError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from here on

	_, err := c.ListPrinters(context.Background())
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v; want *models.APIError", err)
	}
	if apiErr.Code != models.ErrCodeNetwork {
		t.Errorf("code = %q; want NETWORK_ERROR", apiErr.Code)
	}
}

func TestUpdateConnectionPath(t *testing.T) {
	var gotPath, gotMethod string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	defer srv.Close()

	err := c.UpdateConnection(context.Background(), "srv-1", models.UpdateConnectionRequest{IsConnected: true})
	if err != nil {
		t.Fatalf("UpdateConnection() error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/merchants/merchant-1/printers/srv-1/connection" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}
