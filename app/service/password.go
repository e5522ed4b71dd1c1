package service

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a salted one-way digest of the plaintext. A failure
// here is fatal to the calling operation; there is no recovery path.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
