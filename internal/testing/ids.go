package testing

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{24}$`)

// UnknownID returns well-formed identifier which no stored document has
func UnknownID() string {
	return primitive.NewObjectID().Hex()
}

// IsHexID reports whether s is 24 lowercase hex characters
func IsHexID(s string) bool {
	return hexID.MatchString(s)
}
