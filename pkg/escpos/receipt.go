package escpos

import (
	"fmt"
	"strings"
	"time"
)

// Clock supplies the timestamp embedded in canned print jobs. Injecting
// it keeps TestPrint and Receipt byte-for-byte deterministic in tests.
type Clock func() time.Time

// ReceiptItem is one service line on a laundry receipt.
type ReceiptItem struct {
	Service  string  `json:"service"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ReceiptData describes an order receipt. All content is caller
// supplied; the builder does no lookups.
type ReceiptData struct {
	MerchantName string        `json:"merchantName"`
	Address      string        `json:"address,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	OrderNumber  string        `json:"orderNumber"`
	CustomerName string        `json:"customerName,omitempty"`
	Items        []ReceiptItem `json:"items"`
	Total        float64       `json:"total"`
	Footer       string        `json:"footer,omitempty"`
}

const receiptTimeLayout = "02/01/2006 15:04"

// TestPrint builds the standard printer test page. Two invocations with
// the same clock produce identical output.
func TestPrint(clock Clock) (string, error) {
	now := clock()
	return NewBuilder().
		Init().
		Align(AlignCenter).
		Bold(true).
		FontSize(FontDoubleHeight).
		Text("PRINTER TEST").
		LineFeed(1).
		FontSize(FontNormal).
		Bold(false).
		Text(strings.Repeat("-", 32)).
		LineFeed(1).
		Align(AlignLeft).
		Text("Printed: " + now.Format(receiptTimeLayout)).
		LineFeed(1).
		Text("Characters: ABCDEFGHIJKLMNOPQRSTUVWXYZ").
		LineFeed(1).
		Text("Numbers: 0123456789").
		LineFeed(1).
		Align(AlignCenter).
		QRCode("printer-test", 6, 1).
		LineFeed(2).
		Text("Test OK").
		LineFeed(3).
		CutPaper().
		Build()
}

// Receipt builds an itemized order receipt.
func Receipt(data ReceiptData, clock Clock) (string, error) {
	if data.OrderNumber == "" {
		return "", fmt.Errorf("escpos: receipt order number is required")
	}
	if len(data.Items) == 0 {
		return "", fmt.Errorf("escpos: receipt must contain at least one item")
	}

	now := clock()
	b := NewBuilder().
		Init().
		Align(AlignCenter).
		Bold(true).
		FontSize(FontDoubleHeight).
		Text(data.MerchantName).
		LineFeed(1).
		FontSize(FontNormal).
		Bold(false)

	if data.Address != "" {
		b = b.Text(data.Address).LineFeed(1)
	}
	if data.Phone != "" {
		b = b.Text(data.Phone).LineFeed(1)
	}

	b = b.Text(strings.Repeat("=", 32)).
		LineFeed(1).
		Align(AlignLeft).
		Text("Order: " + data.OrderNumber).
		LineFeed(1).
		Text("Date:  " + now.Format(receiptTimeLayout)).
		LineFeed(1)

	if data.CustomerName != "" {
		b = b.Text("Cust:  " + data.CustomerName).LineFeed(1)
	}

	b = b.Text(strings.Repeat("-", 32)).LineFeed(1)

	for _, item := range data.Items {
		b = b.Text(fmt.Sprintf("%-20s x%d", truncate(item.Service, 20), item.Quantity)).
			LineFeed(1).
			Align(AlignRight).
			Text(fmt.Sprintf("%.2f", item.Price)).
			LineFeed(1).
			Align(AlignLeft)
	}

	b = b.Text(strings.Repeat("-", 32)).
		LineFeed(1).
		Bold(true).
		Text(fmt.Sprintf("TOTAL: %.2f", data.Total)).
		LineFeed(1).
		Bold(false).
		Align(AlignCenter).
		QRCode("order:"+data.OrderNumber, 6, 1).
		LineFeed(1)

	if data.Footer != "" {
		b = b.Text(data.Footer).LineFeed(1)
	}

	return b.LineFeed(3).CutPaper().Build()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
