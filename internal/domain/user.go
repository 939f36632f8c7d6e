package domain

import "time"

// User is an account holder. Email and FirebaseUID are optional but unique
// when set.
type User struct {
	ID           string    `json:"id" db:"id" firestore:"-"`
	Email        string    `json:"email" db:"email" firestore:"email,omitempty"`
	FirebaseUID  string    `json:"-" db:"firebase_uid" firestore:"firebaseUid,omitempty"`
	Name         string    `json:"name" db:"name" firestore:"name"`
	PasswordHash string    `json:"-" db:"password_hash" firestore:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at" firestore:"createdAt"`
}

// Profile returns the public view of the user.
func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Email: u.Email, Name: u.Name}
}

// UserProfile is the user shape returned to clients.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RegisterRequest is the request body for creating a password account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the request body for a password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FirebaseRequest is the request body for exchanging a Firebase ID token.
type FirebaseRequest struct {
	IDToken string `json:"idToken"`
}

// AuthResponse is returned by register, login and the Firebase exchange.
type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

// MeResponse is returned by the current-user endpoint.
type MeResponse struct {
	User UserProfile `json:"user"`
}
