package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

// Mapping locates fields in provider webhook payloads with JSONPath
// expressions.
type Mapping struct {
	EventPath     string
	ReferencePath string
	StatusPath    string
}

// DefaultMapping matches payloads shaped like
// {"type": "...", "data": {"reference": "...", "status": "..."}}.
func DefaultMapping() Mapping {
	return Mapping{EventPath: "$.type", ReferencePath: "$.data.reference", StatusPath: "$.data.status"}
}

// Event is the normalized content of a webhook.
type Event struct {
	Type      string
	Reference string
	Status    string
}

// Extract reads the event fields from a JSON body. Missing optional fields
// are left empty; a missing reference is an error.
func (m Mapping) Extract(body []byte) (Event, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("decode webhook: %w", err)
	}
	ev := Event{
		Type:      lookup(doc, m.EventPath),
		Reference: lookup(doc, m.ReferencePath),
		Status:    strings.ToLower(lookup(doc, m.StatusPath)),
	}
	if ev.Reference == "" {
		return Event{}, fmt.Errorf("webhook has no payment reference at %s", m.ReferencePath)
	}
	return ev, nil
}

func lookup(doc interface{}, path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	v, err := jsonpath.Get(path, doc)
	if err != nil || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		if len(val) == 0 {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(val[0]))
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Outcome classifies what a webhook means for the booking.
type Outcome string

const (
	OutcomePaid             Outcome = "paid"
	OutcomeFailed           Outcome = "failed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeRejected         Outcome = "rejected"
)

// Classify maps the provider status, or the last segment of the event type
// when no status is present, to an outcome.
func (e Event) Classify() Outcome {
	status := e.Status
	if status == "" {
		status = strings.ToLower(e.Type)
		if i := strings.LastIndexAny(status, "._:"); i >= 0 {
			status = status[i+1:]
		}
	}
	switch status {
	case "paid", "succeeded", "success", "completed":
		return OutcomePaid
	case "failed", "expired", "cancelled", "canceled":
		return OutcomeFailed
	}
	return OutcomeIgnored
}

// Sign returns the hex signature of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex signature, optionally prefixed "sha256=", in
// constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
