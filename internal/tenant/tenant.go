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

package tenant

import (
	"time"
)

// Status is the billing/serving state of a tenant
type Status string

// Status constants
const (
	StatusActive   Status = "ACTIVE"
	StatusTrial    Status = "TRIAL"
	StatusInactive Status = "INACTIVE"
	StatusPastDue  Status = "PAST_DUE"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusInactive, StatusPastDue:
		return true
	}
	return false
}

// Servable reports whether tenant-scoped operations may run for a tenant in status s.
func (s Status) Servable() bool {
	return s == StatusActive || s == StatusTrial
}

// Tenant represents an isolated customer account, the unit of data partitioning
type Tenant struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Status           Status     `json:"status"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	NextBillingDate  *time.Time `json:"next_billing_date,omitempty"`
	PaymentGatewayID string     `json:"payment_gateway_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// InitialStatus derives the status of a newly created tenant from its trial length.
func InitialStatus(trialDays int) Status {
	if trialDays > 0 {
		return StatusTrial
	}
	return StatusActive
}
