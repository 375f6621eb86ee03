package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrProvider is wrapped by every failed provider call.
var ErrProvider = errors.New("dns provider request failed")

type Provider interface {
	// Zones lists every zone the token may edit.
	Zones(ctx context.Context, token string) ([]Zone, error)
	// Records lists the address records of the given zones.
	Records(ctx context.Context, token string, zones []Zone) ([]Record, error)
	UpdateRecord(ctx context.Context, token, zoneID, recordID, content string) error
}

type Zone struct {
	ID   string
	Name string
}

type Record struct {
	ID       string
	ZoneID   string
	ZoneName string
	Name     string
	Type     string
	Content  string
}

// Matches reports whether fp identifies the zone by ID or by name.
func (z Zone) Matches(fp string) bool {
	return fp == z.ID || fp == z.Name
}

// Matches reports whether fp identifies the record by ID or by name.
func (r Record) Matches(fp string) bool {
	return fp == r.ID || fp == r.Name
}

// Error is a non-success response from the provider.
type Error struct {
	Op       string
	Status   int
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}
