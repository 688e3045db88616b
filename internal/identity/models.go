// Package identity exposes the read-only view of patients and health
// professionals that scheduling depends on. Accounts are owned by the
// identity service; this package never writes them.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
)

// Role selects which extension record accompanies a user.
type Role string

const (
	RolePatient      Role = "PATIENT"
	RoleProfessional Role = "PRO_SANTE"
	RoleAdmin        Role = "ADMIN"
)

var (
	ErrForbidden            = errors.New("identity: forbidden")
	ErrUnknownRole          = errors.New("identity: unknown role")
	ErrPatientNotFound      = errors.New("identity: patient not found")
	ErrProfessionalNotFound = errors.New("identity: professional not found")
)

// ParseRole accepts the canonical role names case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RolePatient, RoleProfessional, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Authorize returns ErrForbidden unless actor is one of allowed.
func Authorize(actor Role, allowed ...Role) error {
	for _, r := range allowed {
		if r == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s", ErrForbidden, actor)
}

// Contact is how a user can be reached.
type Contact struct {
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// User is the identity shared by every role.
type User struct {
	ID        int64   `json:"id"`
	LastName  string  `json:"last_name"`
	FirstName string  `json:"first_name"`
	Sex       string  `json:"sex,omitempty"`
	Role      Role    `json:"role"`
	Contact   Contact `json:"contact"`
	Enabled   bool    `json:"enabled"`
}

// DisplayName renders "nom prenom".
func (u User) DisplayName() string {
	return strings.TrimSpace(u.LastName + " " + u.FirstName)
}

// Patient is the patient extension record. Location is nil when the
// patient never shared coordinates.
type Patient struct {
	User
	Location *geo.Point `json:"location,omitempty"`
}

// Professional is the health professional extension record.
type Professional struct {
	User
	Specialty   string     `json:"specialty"`
	Description string     `json:"description,omitempty"`
	Rate        float64    `json:"rate"`
	Location    *geo.Point `json:"location,omitempty"`
}
