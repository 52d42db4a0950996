package user

import (
	"errors"
	"strings"
)

type SignupDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (dto SignupDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("name is required")
	}
	if err := validateEmail(dto.Email); err != nil {
		return err
	}
	if len(dto.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (dto LoginDTO) Validate() error {
	if dto.Email == "" {
		return errors.New("email is required")
	}
	if dto.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

type UpdateRoleDTO struct {
	Role string `json:"role"`
}

func (dto UpdateRoleDTO) Validate() error {
	if !ValidRole(dto.Role) {
		return errors.New("role must be one of sales, manager, admin")
	}
	return nil
}

type UpdateAvatarDTO struct {
	Avatar string `json:"avatar"`
}

type UpdatePasswordDTO struct {
	Password string `json:"password"`
}

func (dto UpdatePasswordDTO) Validate() error {
	if len(dto.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// ProfileUpdateDTO stages a name/email change for admin approval.
type ProfileUpdateDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (dto ProfileUpdateDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("name is required")
	}
	return validateEmail(dto.Email)
}

type ResolveProfileUpdateDTO struct {
	Approve bool `json:"approve"`
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return errors.New("email is not valid")
	}
	return nil
}
