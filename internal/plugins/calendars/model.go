package calendars

import "time"

// Role is a calendar access level. Levels are strictly ordered so that
// permission checks can use >= comparisons.
type Role int

const (
	// RoleNone means the user has no access to the calendar.
	RoleNone Role = 0
	// RoleViewer can read entries but cannot modify anything.
	RoleViewer Role = 1
	// RoleEditor can create, move, edit and delete entries.
	RoleEditor Role = 2
	// RoleOwner has full control including sharing and deletion. Ownership
	// is implicit in calendars.owner_id and is never stored as a grant.
	RoleOwner Role = 3
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleEditor:
		return "editor"
	case RoleOwner:
		return "owner"
	default:
		return "none"
	}
}

// CanEdit reports whether the role permits entry mutations.
func (r Role) CanEdit() bool { return r >= RoleEditor }

// CanManage reports whether the role permits share management and
// calendar deletion.
func (r Role) CanManage() bool { return r >= RoleOwner }

// RoleFromString parses a wire role name. Only viewer and editor are
// grantable; owner is implicit and "owner" is rejected here.
func RoleFromString(s string) (Role, bool) {
	switch s {
	case "viewer":
		return RoleViewer, true
	case "editor":
		return RoleEditor, true
	default:
		return RoleNone, false
	}
}

// Calendar is a named container for meal entries, owned by one user and
// optionally shared with others.
type Calendar struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`

	// Role is the requesting user's effective role. Populated by the
	// service on reads; not a stored column.
	Role string `json:"role,omitempty"`
}

// ShareGrant is an explicit (calendar, user, role) access grant.
type ShareGrant struct {
	CalendarID  string    `json:"calendarId"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateCalendarRequest is the payload for creating a calendar.
type CreateCalendarRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// RenameCalendarRequest is the payload for renaming a calendar.
type RenameCalendarRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ShareRequest is the payload for granting or updating access.
type ShareRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
