package auth

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

var passwordRules = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`[A-Z]`), "Password must contain at least one uppercase letter."},
	{regexp.MustCompile(`[a-z]`), "Password must contain at least one lowercase letter."},
	{regexp.MustCompile(`[0-9]`), "Password must contain at least one digit."},
	{regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`), "Password must contain at least one special character."},
}

// PasswordProblems lists every rule the password breaks, or nil when it is acceptable.
func PasswordProblems(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	for _, rule := range passwordRules {
		if !rule.pattern.MatchString(password) {
			problems = append(problems, rule.message)
		}
	}
	return problems
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
