package domain

// User types recognized by the platform. The account backend may introduce
// additional administrative types; RedirectPath treats those as generic.
const (
	UserTypePregnant  = "pregnant"
	UserTypeCaregiver = "caregiver"
)

// User is the account record as served by the account backend
// (GET /account/users/me/). The gateway treats it as read-only.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	UserType       string `json:"user_type"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	IsVerified     bool   `json:"is_verified"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// VerificationStatus is the account backend's answer to
// GET /account/verification/status/.
type VerificationStatus struct {
	IsVerified bool   `json:"is_verified"`
	Status     string `json:"status,omitempty"`
}

// Credentials is the login request payload forwarded to the account backend.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthPayload is the account backend's response to a successful login or
// registration: a token, the user record, and an optional human message.
// Either field may be missing in a malformed response; callers must check.
type AuthPayload struct {
	Token   string `json:"token"`
	User    *User  `json:"user"`
	Message string `json:"message,omitempty"`
}
