package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"socialapp/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// Bodies are rendered as plain text, so all markup is stripped.
var sanitizer = bluemonday.StrictPolicy()

// cleanBody sanitizes and trims text, rejecting empty or oversized input.
func cleanBody(field, raw string, maxLen int) (string, error) {
	body := strings.TrimSpace(sanitizer.Sanitize(raw))
	if body == "" {
		return "", models.NewValidationError(field + " is required")
	}
	if utf8.RuneCountInString(body) > maxLen {
		return "", models.NewValidationError(fmt.Sprintf("%s too long (max %d characters)", field, maxLen))
	}
	return body, nil
}
