package dto

// LoginRequest carries the credentials presented at the login endpoint.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse is the session issued after a successful authentication.
type LoginResponse struct {
	Token                  string `json:"token"`
	Identifier             string `json:"identifier"`
	Role                   string `json:"role"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

// ChangePasswordRequest carries a password change submission. OldPassword is
// ignored when the session is in the forced first-change state.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"required"`
	Confirm     string `json:"confirm"`
}
