package task

import (
	"fmt"
	"strconv"
	"strings"
)

// SortField enumerates the columns a listing may be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortStatus    SortField = "status"
	SortFileID    SortField = "file_id"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListOptions replaces free-form store filters with the fields a listing can use.
type ListOptions struct {
	Status     *Status
	FileID     string
	SortBy     SortField
	Descending bool
	Limit      int
	Offset     int
}

func DefaultListOptions() ListOptions {
	return ListOptions{SortBy: SortCreatedAt, Descending: true, Limit: DefaultListLimit}
}

func (o ListOptions) Validate() error {
	switch o.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortStatus, SortFileID:
	default:
		return fmt.Errorf("%w: cannot sort by %q", ErrValidation, o.SortBy)
	}
	if o.Status != nil && !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *o.Status)
	}
	if o.Limit < 1 || o.Limit > MaxListLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxListLimit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", ErrValidation)
	}
	return nil
}

// ParseListOptions reads options from URL query values such as
// ?status=in_queue&sort=updated_at&order=asc&limit=20&offset=40.
func ParseListOptions(get func(string) string) (ListOptions, error) {
	opts := DefaultListOptions()
	if v := strings.TrimSpace(get("status")); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return opts, err
		}
		opts.Status = &st
	}
	opts.FileID = strings.TrimSpace(get("file_id"))
	if v := strings.TrimSpace(get("sort")); v != "" {
		opts.SortBy = SortField(v)
	}
	switch strings.ToLower(strings.TrimSpace(get("order"))) {
	case "":
	case "asc":
		opts.Descending = false
	case "desc":
		opts.Descending = true
	default:
		return opts, fmt.Errorf("%w: order must be asc or desc", ErrValidation)
	}
	var err error
	if opts.Limit, err = intParam(get("limit"), opts.Limit, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = intParam(get("offset"), 0, "offset"); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func intParam(raw string, def int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrValidation, name)
	}
	return n, nil
}
