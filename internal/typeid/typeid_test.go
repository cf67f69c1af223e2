package typeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewElementID(t *testing.T) {
	a := NewElementID()
	b := NewElementID()

	assert.NotEqual(t, a, b)
	assert.True(t, HasPrefix(a, PrefixElement))
	assert.False(t, HasPrefix(a, PrefixUser))
}

func TestHasPrefix_Invalid(t *testing.T) {
	assert.False(t, HasPrefix("not-a-typeid", PrefixElement))
	assert.True(t, HasPrefix(NewUserID(), PrefixUser))
}
