package models

import "time"

// PrinterAPI is the remote backend's view of a printer.
type PrinterAPI struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DeviceName      string     `json:"deviceName"`
	DeviceID        string     `json:"deviceId"`
	DeviceType      string     `json:"deviceType"`
	ConnectionType  string     `json:"connectionType"`
	PaperSize       PaperSize  `json:"paperSize"`
	PrintDensity    int        `json:"printDensity"`
	PrintSpeed      int        `json:"printSpeed"`
	AutoCut         bool       `json:"autoCut"`
	IsActive        bool       `json:"isActive"`
	IsConnected     bool       `json:"isConnected"`
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// ToLocal translates the server view into a local printer config, used
// by the pull path where the server is authoritative.
func (p PrinterAPI) ToLocal() PrinterConfig {
	return PrinterConfig{
		ID:            p.DeviceID,
		Name:          p.Name,
		DeviceName:    p.DeviceName,
		IsConnected:   p.IsConnected,
		LastConnected: p.LastConnectedAt,
		IsActive:      p.IsActive,
		Settings: PrinterSettings{
			PaperSize:    p.PaperSize,
			PrintDensity: p.PrintDensity,
			PrintSpeed:   p.PrintSpeed,
			AutoCut:      p.AutoCut,
		},
	}
}

// CreatePrinterRequest is the create body for the merchant printer API.
type CreatePrinterRequest struct {
	Name           string    `json:"name"`
	DeviceName     string    `json:"deviceName"`
	DeviceID       string    `json:"deviceId"`
	DeviceType     string    `json:"deviceType"`
	ConnectionType string    `json:"connectionType"`
	PaperSize      PaperSize `json:"paperSize"`
	PrintDensity   int       `json:"printDensity"`
	PrintSpeed     int       `json:"printSpeed"`
	AutoCut        bool      `json:"autoCut"`
	IsActive       bool      `json:"isActive"`
}

// UpdatePrinterRequest is a partial settings update. Only fields that
// actually changed locally are set, so untouched server-side fields
// survive the write.
type UpdatePrinterRequest struct {
	Name         *string    `json:"name,omitempty"`
	PaperSize    *PaperSize `json:"paperSize,omitempty"`
	PrintDensity *int       `json:"printDensity,omitempty"`
	PrintSpeed   *int       `json:"printSpeed,omitempty"`
	AutoCut      *bool      `json:"autoCut,omitempty"`
}

// UpdateConnectionRequest reports live connection state through its own
// endpoint, separate from configured properties.
type UpdateConnectionRequest struct {
	IsConnected     bool       `json:"isConnected"`
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
}

// ListPrintersResponse is the payload of the merchant printer listing.
type ListPrintersResponse struct {
	Printers      []PrinterAPI `json:"printers"`
	ActivePrinter *PrinterAPI  `json:"activePrinter"`
}

// APIError is the uniform error shape of the remote backend.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Well-known cloud error codes surfaced by the sync engine.
const (
	ErrCodeNoMerchantID = "NO_MERCHANT_ID"
	ErrCodeNetwork      = "NETWORK_ERROR"
	ErrCodeBadResponse  = "MALFORMED_RESPONSE"
	ErrCodeCreateFailed = "CREATE_FAILED"
	ErrCodeUpdateFailed = "UPDATE_FAILED"
	ErrCodeConnUpdate   = "CONNECTION_UPDATE_FAILED"
	ErrCodeSyncInFlight = "SYNC_IN_PROGRESS"
)
