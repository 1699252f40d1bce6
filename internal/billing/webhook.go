// Copyright 2026 The PropDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package billing

import (
	"strconv"
	"strings"
	"time"
)

// fieldPath addresses a value in a decoded JSON object, outermost key first.
type fieldPath []string

func (p fieldPath) String() string {
	return strings.Join(p, ".")
}

// Extraction rules, tried in order; the first present non-empty value wins.
// Gateways disagree on field names, so each list covers the vocabularies
// seen in production. New providers need an entry here.
var (
	paymentIDRules = []fieldPath{
		{"payment", "id"},
		{"paymentId"},
		{"id"},
	}

	externalReferenceRules = []fieldPath{
		{"payment", "externalReference"},
		{"externalReference"},
		{"external_reference"},
		{"invoiceId"},
	}

	statusRules = []fieldPath{
		{"payment", "status"},
		{"status"},
		{"event"},
	}
)

// WebhookEvent is what the reconciliation engine takes from an untrusted gateway payload.
type WebhookEvent struct {
	PaymentID         string `json:"payment_id,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	StatusText        string `json:"status_text,omitempty"`
}

// ExtractWebhookEvent applies the extraction rules to a decoded payload.
func ExtractWebhookEvent(payload map[string]any) WebhookEvent {
	return WebhookEvent{
		PaymentID:         firstValue(payload, paymentIDRules),
		ExternalReference: firstValue(payload, externalReferenceRules),
		StatusText:        firstValue(payload, statusRules),
	}
}

func firstValue(payload map[string]any, rules []fieldPath) string {
	for _, path := range rules {
		if v, ok := lookup(payload, path); ok {
			return v
		}
	}
	return ""
}

func lookup(payload map[string]any, path fieldPath) (string, bool) {
	var cur any = payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = obj[key]
		if !ok {
			return "", false
		}
	}

	var s string
	switch v := cur.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

// MapGatewayStatus maps free-text gateway status onto an invoice status.
//
//	contains "PAID" or equals "CONFIRMED" -> PAID
//	contains "OVERDUE" or "LATE"          -> OVERDUE
//	anything else                         -> PENDING
func MapGatewayStatus(text string) Status {
	t := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "PAID") || t == "CONFIRMED":
		return StatusPaid
	case strings.Contains(t, "OVERDUE") || strings.Contains(t, "LATE"):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// isKnownGatewayStatus reports whether text matched a rule other than the PENDING fallback
// or is an explicit pending marker.
func isKnownGatewayStatus(text string) bool {
	t := strings.ToUpper(strings.TrimSpace(text))
	return MapGatewayStatus(t) != StatusPending || strings.Contains(t, "PENDING")
}

// applyWebhook records payload under lastWebhook and moves inv to target.
// It is idempotent: applying the same target and payload twice leaves the
// invoice as applying it once did.
func applyWebhook(inv *Invoice, target Status, payload map[string]any, now time.Time) bool {
	if inv.GatewayData == nil {
		inv.GatewayData = make(map[string]any)
	}
	inv.GatewayData[LastWebhookKey] = payload
	return transition(inv, target, now)
}

// transition moves inv to target and reports whether anything changed.
//
// PAID is terminal: a later non-paid event does not change status or
// PaidDate. PaidDate is only stamped on the first move to PAID.
func transition(inv *Invoice, target Status, now time.Time) bool {
	if inv.Status == StatusPaid && target != StatusPaid {
		return false
	}

	changed := inv.Status != target
	inv.Status = target
	if target == StatusPaid && inv.PaidDate == nil {
		paid := now
		inv.PaidDate = &paid
		changed = true
	}
	return changed
}
