package upload

// MaxFileSize is the largest accepted upload payload.
const MaxFileSize = 5 << 20 // 5 MiB

// allowedMimeTypes is the fixed allow-list of declared content types. The type
// is client-declared and deliberately not verified against file content; the
// admission contract is "reject by declared type".
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"text/plain":         {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// RejectReason identifies why a file failed validation.
type RejectReason string

// Validation rejection reasons. The set is closed.
const (
	ReasonOversize       RejectReason = "oversize"
	ReasonDisallowedType RejectReason = "disallowed-type"
)

// Verdict is the immutable outcome of validating an upload.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
}

// Validate checks the declared MIME type and byte size against the admission
// policy. It is pure: no side effects, deterministic given its inputs.
func Validate(mimeType string, size int64) Verdict {
	if size > MaxFileSize {
		return Verdict{Reason: ReasonOversize}
	}
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return Verdict{Reason: ReasonDisallowedType}
	}
	return Verdict{Accepted: true}
}
