package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrCompanyNotFound = errors.New("company not found")
)

// Role is a user's permission level within a company.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// User is a member of a company. ManagerID is nil for users without a manager.
type User struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Email     string
	Role      Role
	ManagerID *uuid.UUID
	IsActive  bool
	CreatedAt time.Time
}

// Company is a tenant. Currency is the ISO 4217 code approvals are evaluated in.
type Company struct {
	ID             uuid.UUID
	Name           string
	Country        string
	Currency       string
	CurrencySymbol string
	CreatedAt      time.Time
}
