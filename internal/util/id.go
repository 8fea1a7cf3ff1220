package util

import "github.com/google/uuid"

// NewID generates a unique identifier for runs, calls and stream items.
func NewID() string { return uuid.NewString() }
