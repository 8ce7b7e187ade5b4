package server

import (
	"strings"

	"github.com/google/uuid"
)

func validateID(id string) bool {
	if id == "" {
		return false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	// uuid.Parse accepts braced and urn forms; records only ever carry
	// the plain hyphenated one.
	return parsed.String() == strings.ToLower(id)
}
