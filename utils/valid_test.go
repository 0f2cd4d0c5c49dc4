package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", SanitizeEmail("  User@Example.COM "))
	assert.Equal(t, "user@example.com", SanitizeEmail("user@example.com"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "John Doe", SanitizeInput("  John Doe  "))
	assert.Equal(t, "&lt;script&gt;", SanitizeInput("<script>"))
	assert.Equal(t, "ab", SanitizeInput("a\x00b"))
}
