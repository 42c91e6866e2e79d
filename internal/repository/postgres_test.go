package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "1 Rue de la Paix, 75002 Paris", expected: "1 rue de la paix, 75002 paris"},
		{in: "  1  rue de la paix,\t75002   PARIS ", expected: "1 rue de la paix, 75002 paris"},
		{in: "", expected: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalize(tt.in))
	}
}
