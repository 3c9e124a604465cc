package user

import (
	"strings"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/resource"
)

// Roles
const (
	RoleAdmin      = "admin"
	RoleDriver     = "driver"
	RoleAssistant  = "assistant"
	RoleTeacher    = "teacher"
	RoleAccountant = "accountant"
)

var (
	AllRoles = []string{RoleAdmin, RoleDriver, RoleAssistant, RoleTeacher, RoleAccountant}

	rolePriorities = map[string]int{
		RoleAdmin:      30,
		RoleAccountant: 20,
		RoleTeacher:    15,
		RoleDriver:     10,
		RoleAssistant:  5,
	}

	Roles = []Role{
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Driver", Value: RoleDriver},
		{Name: "Bus Assistant", Value: RoleAssistant},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Accountant", Value: RoleAccountant},
	}

	StaffDescriptor = resource.Descriptor{
		Name:     "staff",
		Label:    "staff member",
		Endpoint: "staff",
		Scoped:   true,
		Columns:  []string{"ID", "First Name", "Last Name", "Email", "Phone", "Role", "Is Active"},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func RoleName(role string) string {
	for _, r := range Roles {
		if r.Value == role {
			return r.Name
		}
	}
	return role
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the authenticated account, as returned by the /auth/me endpoint.
type User struct {
	resource.Base
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	School    null.Int  `json:"school"`
	IsActive  bool      `json:"is_active"`
	LastLogin null.Time `json:"last_login"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Account is a User with its credentials, kept by backends only.
type Account struct {
	User
	PasswordHash []byte `json:"password_hash,omitempty"`
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Staff is a member of a school's personnel.
type Staff struct {
	resource.Base
	School    int    `json:"school,omitempty"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Role      string `json:"role" validate:"required,staffrole"`
	IsActive  bool   `json:"is_active"`
}

func (s Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s Staff) IsDriver() bool { return s.Role == RoleDriver }

// Clean normalizes user input before validation.
func (s *Staff) Clean() {
	s.FirstName = core.CleanString(s.FirstName)
	s.LastName = core.CleanString(s.LastName)
	s.Email = core.CleanString(s.Email, true /* lower */)
	s.Phone = core.CleanString(s.Phone)
}

// Credentials are posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Preferences are the display preferences persisted with the session.
type Preferences struct {
	Theme      string `json:"theme,omitempty"`
	Language   string `json:"language,omitempty"`
	DateFormat string `json:"date_format,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{Theme: "light", Language: "en", DateFormat: "2006-01-02", PageSize: 25}
}
