package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID identifies areas, users and jobs. KSUIDs sort by creation time, which
// keeps listing queries stable without an extra column.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

func NewID() (ID, error) {
	kid, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(kid.String()), nil
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("empty ID")
	}
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return ID(s), nil
}
