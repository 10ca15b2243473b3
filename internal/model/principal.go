package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleFinance Role = "FINANCE"
	RoleStaff   Role = "STAFF"
	RoleClient  Role = "CLIENT"
)

// Principal is the caller identity passed explicitly into every operation.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsFinance() bool { return p.Role == RoleFinance }
func (p Principal) IsClient() bool  { return p.Role == RoleClient }

// CanDecidePayments reports whether the caller may accept or reject payments.
func (p Principal) CanDecidePayments() bool {
	return p.IsAdmin() || p.IsFinance()
}
