package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/ksuid"
)

// ErrInvalidID reports an identifier that is not a KSUID.
var ErrInvalidID = errors.New("invalid ID")

// ID is a time sortable unique identifier backed by KSUID. Task uids use it.
type ID string

func (c ID) String() string {
	return string(c)
}

func (c ID) IsZero() bool {
	return c == ""
}

func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(id.String()), nil
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates an identifier received from a client, such as the uid
// path parameter of a task route.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	parsed, err := ksuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a ksuid", ErrInvalidID, s)
	}
	return ID(parsed.String()), nil
}
