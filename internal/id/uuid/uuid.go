// Package uuid mints search identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 search IDs.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() Generator {
	return Generator{}
}

// NewSearchID returns a UUIDv7.
func (Generator) NewSearchID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}
