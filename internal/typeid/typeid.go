package typeid

import (
	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser    = "user"
	PrefixElement = "el"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string    { return New(PrefixUser) }
func NewElementID() string { return New(PrefixElement) }

// HasPrefix reports whether id parses as a typeid carrying prefix.
func HasPrefix(id, prefix string) bool {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.Prefix() == prefix
}
