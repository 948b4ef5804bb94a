// Package uuidv7 generates time-ordered UUIDv7 identifiers.
package uuidv7

import "github.com/google/uuid"

// New panics only if the OS random source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}
	return id.String()
}
