package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	TrialID   ID
	SessionID ID
)

// String conversions for domain IDs
func (id TrialID) String() string   { return ID(id).String() }
func (id SessionID) String() string { return ID(id).String() }

// ParseTrialID parses a string into TrialID
func ParseTrialID(s string) (TrialID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("trial ID cannot be empty")
	}
	return TrialID(s), nil
}

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}
