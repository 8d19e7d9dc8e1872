package events

import "strings"

// Topics emitted by invoice and payment operations. Settings store the
// subscribed subset comma-joined.
const (
	TopicInvoiceCreated  = "invoice.created"
	TopicInvoiceUpdated  = "invoice.updated"
	TopicPaymentRecorded = "payment.recorded"
)

// DefaultTopics returns every topic a webhook may subscribe to.
func DefaultTopics() []string {
	return []string{TopicInvoiceCreated, TopicInvoiceUpdated, TopicPaymentRecorded}
}

// NormalizeTopic lowercases a topic and accepts the underscore spelling
// ("invoice_created") used by older settings rows.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	return strings.ReplaceAll(t, "_", ".")
}

// ParseTopics splits a comma-joined subscription list, dropping blanks,
// unknown names and duplicates.
func ParseTopics(raw string) []string {
	known := map[string]bool{}
	for _, t := range DefaultTopics() {
		known[t] = true
	}
	seen := map[string]bool{}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		t := NormalizeTopic(part)
		if !known[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// JoinTopics is the inverse of ParseTopics.
func JoinTopics(topics []string) string {
	return strings.Join(ParseTopics(strings.Join(topics, ",")), ",")
}

// Subscribed reports whether topic appears in the comma-joined list.
func Subscribed(raw, topic string) bool {
	want := NormalizeTopic(topic)
	for _, t := range ParseTopics(raw) {
		if t == want {
			return true
		}
	}
	return false
}
