package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "P*********3", MaskSecret("Pusilkom123"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "u…@e….com", MaskEmail("User01@Example.com"))
	assert.Equal(t, "a@e….org", MaskEmail("a@example.org"))
	assert.Equal(t, "***", MaskEmail("abc"))
	assert.Equal(t, "a…z", MaskEmail("abcdz"))
	assert.Equal(t, "", MaskEmail("  "))
}
