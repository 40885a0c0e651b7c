package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`^(?i)[a-z0-9._%+\-]+@(?:[a-z0-9\-]+\.)+[a-z]{2,}$`)
	letterPattern = regexp.MustCompile(`[a-zA-Z]`)
	numberPattern = regexp.MustCompile(`[0-9]`)
)

// ValidateEmail reports whether the input looks like a deliverable email
// address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword reports whether the input meets the minimum password
// policy: at least 8 characters with at least one letter and one number.
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	return letterPattern.MatchString(password) && numberPattern.MatchString(password)
}

// PrintError prints an error message to stdout inside a banner so it stands
// out in the interactive shell.
func PrintError(message string) {
	message = "ERROR: " + message
	bannerLine := strings.Repeat("=", len(message)+4)

	fmt.Println(bannerLine)
	fmt.Printf("= %s =\n", message)
	fmt.Println(bannerLine)
	fmt.Println()
}

// Truncate shortens s to at most n runes, appending an ellipsis when it had
// to cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
