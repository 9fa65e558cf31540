package valueobject

import "github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"

// Role - роль пользователя в каталоге пользователей.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleArbitrator Role = "arbitrator"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleFreelancer, RoleArbitrator, RoleAdmin:
		return true
	}
	return false
}

// NewRole разбирает роль, доступную при регистрации.
func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsValid() || r == RoleAdmin {
		return "", apperror.New(apperror.ErrCodeValidation, "роль должна быть client, freelancer или arbitrator")
	}
	return r, nil
}
