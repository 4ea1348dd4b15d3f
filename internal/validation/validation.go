// Package validation checks user-supplied identifiers and document fields.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// UserIDPattern is the accepted user id format
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

const (
	// MaxUserIDLen is the longest accepted user id
	MaxUserIDLen = 64
	// MaxTitleLen is the longest accepted title, in characters
	MaxTitleLen = 200
)

// Validation errors
var (
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = fmt.Errorf("title must not exceed %d characters", MaxTitleLen)
)

// ValidateTitle проверяет название документа: не пустое, не длиннее MaxTitleLen символов
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateUserID проверяет ID пользователя, который зашивается в токен
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	if len(userID) > MaxUserIDLen {
		return fmt.Errorf("user id must not exceed %d characters", MaxUserIDLen)
	}

	if !UserIDPattern.MatchString(userID) {
		return fmt.Errorf("user id can only contain letters, digits and _ . @ -")
	}

	return nil
}
