package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string. The memory store
// uses it for auction ids; the Mongo store derives ids from ObjectIDs
// instead.
func GenerateID() string {
	return uuid.New().String()
}
