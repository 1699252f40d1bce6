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

package auth

// Role is the platform role carried by a verified credential.
type Role string

// -----------------------------------------------------------------------------
// Role Constants
// These are the canonical role names stored on users and embedded in tokens.
// -----------------------------------------------------------------------------

const (
	// RoleBroker is a tenant-bound agent working leads and visits.
	RoleBroker Role = "BROKER"

	// RoleManager supervises brokers within a tenant.
	RoleManager Role = "MANAGER"

	// RoleAdmin administers a tenant. Privileged: satisfies every role gate.
	RoleAdmin Role = "ADMIN"

	// RoleSuperAdmin is a platform operator. Privileged: satisfies every role gate.
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleBroker, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether r belongs to the super-role set.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Satisfies reports whether a caller holding r passes a gate requiring required.
//
// The hierarchy is flat: a role satisfies its own gate, and the privileged
// roles satisfy all gates. There is no ordering between BROKER and MANAGER.
func (r Role) Satisfies(required Role) bool {
	if !r.IsValid() {
		return false
	}
	return r == required || r.IsPrivileged()
}

// Identity is the caller derived from a verified credential.
type Identity struct {
	SubjectID string `json:"sub"`
	Role      Role   `json:"role"`

	// TenantID pins the caller to one tenant. Set for API keys; empty for user tokens.
	TenantID string `json:"tenant_id,omitempty"`
}
