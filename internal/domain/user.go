package domain

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleBeautician Role = "beautician"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleBeautician
}

func (r Role) Counterpart() Role {
	switch r {
	case RoleCustomer:
		return RoleBeautician
	case RoleBeautician:
		return RoleCustomer
	}
	return ""
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

type User struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
