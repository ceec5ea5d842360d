package types

import "time"

// AccessRole is the per-bill privilege level carried by an Access row.
type AccessRole string

const (
	RoleOwner    AccessRole = "owner"
	RoleMember   AccessRole = "member"
	RoleObserver AccessRole = "observer"
)

// Valid reports whether the role is one of the known access roles.
func (r AccessRole) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RoleObserver:
		return true
	}
	return false
}

// Role sets used by the permission checks. Mutating a bill itself or its
// access roster takes an owner; roster and item edits take owner or member;
// reads take any role.
var (
	OwnerOnly     = []AccessRole{RoleOwner}
	OwnerOrMember = []AccessRole{RoleOwner, RoleMember}
	AnyRole       = []AccessRole{RoleOwner, RoleMember, RoleObserver}
)

// Bill is the aggregate root of a shared-expense ledger. Its member roster
// is owned exclusively by the bill; access rows, items, and share tokens
// reference the bill by id.
type Bill struct {
	// ID is the unique identifier of the bill.
	ID int64 `json:"id" db:"id"`

	// Title is the display title of the bill.
	Title string `json:"title" db:"title"`

	// CreatedBy references the user that created the bill. Informational
	// only; authorization is decided solely by Access rows.
	CreatedBy int64 `json:"created_by" db:"created_by"`

	// CreatedTime is when the bill was created.
	CreatedTime time.Time `json:"created_time" db:"created_time"`

	// ItemUpdatedTime is the last time an item on this bill changed.
	// Bill listings order by it, most recent first.
	ItemUpdatedTime time.Time `json:"item_updated_time" db:"item_updated_time"`

	// Members is the bill's roster. Populated on reads that return the
	// full aggregate; nil on bare row fetches.
	Members []Member `json:"members,omitempty"`
}

// Member is a payer/payee identity scoped to one bill. A member is not a
// user: it may or may not be linked to a registered account.
type Member struct {
	// ID is the unique identifier of the member.
	ID int64 `json:"id" db:"id"`

	// BillID references the owning bill.
	BillID int64 `json:"bill_id" db:"bill_id"`

	// Name is the display name, 1-64 characters, scoped to the bill.
	Name string `json:"name" db:"name"`

	// LinkedUserID optionally ties this member to a registered user.
	// Nil for unregistered participants; rebindable.
	LinkedUserID *int64 `json:"linked_user_id,omitempty" db:"linked_user_id"`
}

// Access grants a user a role on a bill. Access rows are the sole
// authority for who may see or act on a bill.
type Access struct {
	// ID is the unique identifier of the access row.
	ID int64 `json:"id" db:"id"`

	// BillID references the bill the grant applies to.
	BillID int64 `json:"bill_id" db:"bill_id"`

	// UserID references the granted user. At most one row exists per
	// (bill, user) pair.
	UserID int64 `json:"user_id" db:"user_id"`

	// Role is the granted privilege level.
	Role AccessRole `json:"role" db:"role"`
}

// AccessEntry is an access row with the username resolved, as returned
// by access listings.
type AccessEntry struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Role     AccessRole `json:"role"`
}

// AccessGrant is a (user, role) pair supplied by callers when replacing
// a bill's access roster.
type AccessGrant struct {
	UserID int64      `json:"user_id"`
	Role   AccessRole `json:"role"`
}
