package events

import "testing"

func TestPublishWithoutSinksIsNoOp(t *testing.T) {
	p := NewPublisher()
	// Must not panic or block.
	p.Publish(SubjectPrinterAdded, "AA:BB", map[string]string{"name": "Front Desk"})
	p.Close()
}

func TestToMQTTTopic(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{SubjectPrinterAdded, "printer/added"},
		{SubjectPrinterConnection, "printer/connection"},
		{SubjectSyncResult, "sync/result"},
	}
	for _, tt := range tests {
		if got := toMQTTTopic(tt.subject); got != tt.want {
			t.Errorf("toMQTTTopic(%q) = %q; want %q", tt.subject, got, tt.want)
		}
	}
}
