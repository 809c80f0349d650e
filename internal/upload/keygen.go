package upload

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
	dashRuns        = regexp.MustCompile(`-+`)
)

// GenerateKey derives a collision-resistant, URL-safe storage key from an
// untrusted original filename. The result has the shape
// {unixMillis}-{8 hex chars}-{sanitizedBase}.{ext}; a name without a dot
// keeps the whole name as base and omits the extension (and the dot).
// Never fails: empty or fully-symbolic names yield a key with an empty base.
func GenerateKey(originalName string) string {
	base := originalName
	ext := ""
	if i := strings.LastIndex(originalName, "."); i >= 0 {
		base = originalName[:i]
		ext = originalName[i+1:]
	}

	base = nonAlphanumeric.ReplaceAllString(base, "-")
	base = dashRuns.ReplaceAllString(base, "-")
	if len(base) > 50 {
		base = base[:50]
	}

	// The first UUID group gives 32 bits of entropy, enough to make two
	// uploads in the same millisecond collide with negligible probability.
	shortID := uuid.NewString()[:8]

	key := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), shortID, base)
	if ext != "" {
		key += "." + ext
	}
	return key
}
