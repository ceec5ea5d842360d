package types

import "time"

// ShareToken is a capability granting bill access without an explicit
// invite. A token dies three ways: it expires, its use counter runs out,
// or an owner revokes it. Expiry and exhaustion are computed at
// redemption time; the row persists until explicitly deleted so owners
// can still list spent tokens.
type ShareToken struct {
	// ID is the unique identifier of the token row.
	ID int64 `json:"id" db:"id"`

	// Token is the opaque globally unique token string.
	Token string `json:"token" db:"token"`

	// BillID references the bill the token grants access to.
	BillID int64 `json:"bill_id" db:"bill_id"`

	// Role is the access role granted on redemption.
	Role AccessRole `json:"access_role" db:"access_role"`

	// CreatedBy references the issuing user.
	CreatedBy int64 `json:"created_by" db:"created_by"`

	// CreatedTime is when the token was issued.
	CreatedTime time.Time `json:"created_time" db:"created_time"`

	// ExpiresAt, when set, makes redemption fail after that moment.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	// RemainingUses, when set, is decremented per redemption; nil means
	// unlimited. A counter at zero can never pass redemption again.
	RemainingUses *int `json:"remaining_uses,omitempty" db:"remaining_uses"`

	// MemberID optionally binds the token to a bill member; redemption
	// links that member to the redeeming user.
	MemberID *int64 `json:"bill_member_id,omitempty" db:"bill_member_id"`
}

// ShareTokenView is a share token with issuer username and bound-member
// name resolved, as returned by token listings.
type ShareTokenView struct {
	Token         string     `json:"token"`
	Role          AccessRole `json:"access_role"`
	CreatedBy     string     `json:"created_by"`
	CreatedTime   time.Time  `json:"created_time"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RemainingUses *int       `json:"remaining_uses,omitempty"`
	MemberName    *string    `json:"bill_member_name,omitempty"`
}
