package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsAllowedTypes(t *testing.T) {
	allowed := []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"text/plain",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	for _, mt := range allowed {
		t.Run(mt, func(t *testing.T) {
			v := Validate(mt, 1024)
			assert.True(t, v.Accepted)
		})
	}
}

func TestValidateSizeBoundary(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		accepted bool
	}{
		{"empty", 0, true},
		{"exactly at limit", MaxFileSize, true},
		{"one byte over", MaxFileSize + 1, false},
		{"far over", 100 << 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate("image/png", tt.size)
			assert.Equal(t, tt.accepted, v.Accepted)
			if !tt.accepted {
				assert.Equal(t, ReasonOversize, v.Reason)
			}
		})
	}
}

func TestValidateRejectsDisallowedTypes(t *testing.T) {
	disallowed := []string{
		"application/zip",
		"application/octet-stream",
		"text/html",
		"image/svg+xml",
		"video/mp4",
		"",
	}
	for _, mt := range disallowed {
		t.Run(mt, func(t *testing.T) {
			v := Validate(mt, 10)
			assert.False(t, v.Accepted)
			assert.Equal(t, ReasonDisallowedType, v.Reason)
		})
	}
}

func TestValidateOversizeTakesPrecedence(t *testing.T) {
	// An oversize file with a disallowed type reports oversize, matching the
	// stage order of the parse-time cutoff.
	v := Validate("application/zip", MaxFileSize+1)
	assert.Equal(t, ReasonOversize, v.Reason)
}
