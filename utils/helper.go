package utils

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateOnlyLayout = "2006-01-02"

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

// ClientIpFromForwardedFor returns the first hop of an X-Forwarded-For
// header, or remoteAddr when the header is empty.
func ClientIpFromForwardedFor(forwardedFor string, remoteAddr string) string {
	if forwardedFor == "" {
		return remoteAddr
	}
	first := strings.SplitN(forwardedFor, ",", 2)[0]
	return strings.TrimSpace(first)
}

// ParseDateOnly parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDateOnly(s string) (time.Time, error) {
	return time.ParseInLocation(DateOnlyLayout, strings.TrimSpace(s), time.UTC)
}

// StartOfMonth truncates t to the first day of its month (UTC midnight).
func StartOfMonth(t time.Time) time.Time {
	year, month, _ := t.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// EndOfDay advances t to the last instant of its calendar day (UTC).
// Range queries treat the end date as inclusive.
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
