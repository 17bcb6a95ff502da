package models

import "time"

const (
	// GrantValidity is how long a successful entry grant stays usable.
	GrantValidity = 60 * time.Minute
	// DeniedGrantValidity keeps denial grants short-lived so they cannot
	// linger as reusable artifacts.
	DeniedGrantValidity = 5 * time.Minute
)

// SessionPolicyGrant is the capability issued at vehicle entry: everything
// this session is allowed to ever pay with. Created once, read-only after.
type SessionPolicyGrant struct {
	Id              string         `json:"grant_id"`
	PolicyHash      string         `json:"policy_hash"`
	AllowedRails    []Rail         `json:"allowed_rails"`
	AllowedAssets   []Asset        `json:"allowed_assets"`
	Caps            FiatCaps       `json:"caps_fiat_minor"`
	RequireApproval bool           `json:"require_approval"`
	Reasons         []PolicyReason `json:"reasons,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

func (g SessionPolicyGrant) Denied() bool {
	return len(g.AllowedRails) == 0
}

func (g SessionPolicyGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

func (g SessionPolicyGrant) AllowsRail(rail Rail) bool {
	for _, r := range g.AllowedRails {
		if r == rail {
			return true
		}
	}
	return false
}
