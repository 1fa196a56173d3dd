package domain

import (
	"fmt"
	"strings"
)

// RecipientType discriminates the two identity spaces that own notifications and devices.
type RecipientType string

const (
	RecipientAdmin RecipientType = "ADMIN"
	RecipientUser  RecipientType = "USER"
)

// Valid reports whether t is one of the known recipient types.
func (t RecipientType) Valid() bool {
	return t == RecipientAdmin || t == RecipientUser
}

// ParseRecipientType accepts the type case-insensitively ("admin", "ADMIN").
func ParseRecipientType(s string) (RecipientType, error) {
	t := RecipientType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown recipient type %q: %w", s, ErrBadRequest)
	}
	return t, nil
}

// Recipient identifies who a notification or a device subscription belongs to.
type Recipient struct {
	ID   string        `json:"id" validate:"required"`
	Type RecipientType `json:"type" validate:"required,oneof=ADMIN USER"`
}

// Key is the storage partition key for everything owned by the recipient, e.g. "ADMIN#u1".
func (r Recipient) Key() string {
	return string(r.Type) + "#" + r.ID
}

func (r Recipient) IsZero() bool {
	return r.ID == "" && r.Type == ""
}

func (r Recipient) String() string {
	return r.Key()
}
