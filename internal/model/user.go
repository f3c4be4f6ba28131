package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// User is a staff or bidder account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleBidder = "bidder"
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff || role == RoleBidder
}

// AccountRole reports whether role can be given to a stored account.
func AccountRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:  3,
		RoleStaff:  2,
		RoleBidder: 1,
	}
	return levels[role] >= levels[minimum] && levels[role] > 0 && levels[minimum] > 0
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// ValidatePassword checks password strength rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// MinPhoneDigits is the shortest phone number accepted for bidder sign-in.
const MinPhoneDigits = 10

// ErrInvalidPhone is returned by BidderID for short phone numbers.
var ErrInvalidPhone = errors.New("a phone number with at least 10 digits is required")

// DefaultBidderName is shown for bidders who give no name.
const DefaultBidderName = "Guest Bidder"

// BidderID reduces a phone number to its digits, which identify the bidder.
func BidderID(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() < MinPhoneDigits {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}
