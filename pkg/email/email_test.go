package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFromAddress(t *testing.T) {
	tests := []struct {
		addr  string
		first string
		last  string
	}{
		{"ana.lopez@example.com", "Ana", "Lopez"},
		{"LUIS_ortega+hotel@example.com", "Luis", "Hotel"},
		{"maria@example.com", "Maria", ""},
		{"j-p-smith", "J", "Smith"},
		{"12345@example.com", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			first, last := NameFromAddress(tt.addr)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}
