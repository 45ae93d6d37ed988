package models

// User is the signed-in member as the companion knows them. Group fields are empty until
// the user has joined or created a household.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	GroupCode string `json:"group_code,omitempty"`
}

// HasGroup reports whether the user can address group-scoped endpoints.
func (u *User) HasGroup() bool {
	return u != nil && (u.GroupName != "" || u.GroupCode != "")
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse mirrors POST /api/login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
	User    struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"user"`
}

// Profile mirrors the user document from GET /api/users/by-username.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Group     string `json:"group"`
	GroupID   string `json:"group_id"`
	GroupCode string `json:"group_code"`
}
