package session

// LoginRequest starts a session for the supplied identity. Password is
// optional and stored only as a hash.
type LoginRequest struct {
	ID       string `json:"id" binding:"required,max=64"`
	Name     string `json:"name" binding:"required,max=255"`
	Role     string `json:"role" binding:"required,oneof=EMPLOYEE MANAGER"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,max=72"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

type LoginResponse struct {
	User        UserResponse `json:"user"`
	SessionID   string       `json:"session_id"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   string       `json:"expires_at"`
}

func mapToUserResponse(u User) UserResponse {
	return UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Role:  string(u.Role),
		Email: u.Email,
	}
}
