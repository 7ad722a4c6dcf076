package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a login password at the default cost. Stored on the
// user row; never logged.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored hash. Returns
// bcrypt.ErrMismatchedHashAndPassword on a wrong password, which Login
// books as a failed-login activity event.
func ComparePassword(hashed string, attempt string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(attempt))
}
