package domain

// Roles issued by the repository API
const (
	RoleAdmin  = "admin"
	RoleReader = "user"
)

// User is the signed-in account as reported by the repository API
type User struct {
	ID       ID     `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user may manage works, authors and users
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// LoginRequest is the login form payload
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" form:"password" validate:"required,min=1"`
}

// LoginResponse is what the repository API answers on a successful login
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
