package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// DefaultRole is assigned at signup when no role is requested.
const DefaultRole = "user"

// Identity is the resolved user passed between the session manager, the
// access policy and the API layer. The password hash never serializes.
type Identity struct {
	Username     string    `json:"username"`               // Unique username, the storage key
	PasswordHash string    `json:"-"`                      // Hashed password - never serialize
	IsSuperuser  bool      `json:"is_superuser"`           // Grants access to superuser-gated endpoints
	Role         string    `json:"role,omitempty"`         // Role name, DefaultRole unless set at signup
	CreatedAt    time.Time `json:"created_at,omitempty"`   // When the identity was created
}

// ValidatePasswordStrength checks if a password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash verifies a password against a bcrypt hash. A malformed
// hash verifies as false, it never panics or errors out.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Sanitized returns a copy of the identity with the password hash stripped,
// safe to hand to callers outside the core.
func (u Identity) Sanitized() Identity {
	u.PasswordHash = ""
	return u
}
