// Package intake validates uploaded documents before any provider is invoked.
package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// ErrorCode identifies the intake check that rejected a document.
type ErrorCode string

const (
	FileTooLarge      ErrorCode = "file_too_large"
	UnsupportedType   ErrorCode = "unsupported_type"
	SignatureMismatch ErrorCode = "signature_mismatch"
	EmptyDocument     ErrorCode = "empty_document"
)

// ValidationError is a fatal intake rejection. No extraction attempt is made.
type ValidationError struct {
	Code    ErrorCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake: %s: %s", e.Code, e.Message)
}

// Limits bounds what intake accepts.
type Limits struct {
	MaxSizeBytes int64
	AllowedTypes []string
}

// Validate checks the raw upload against the limits and the file's magic
// bytes. It is a hard gate: any failure returns immediately with a
// ValidationError and the pipeline never runs.
func Validate(data []byte, declaredType, filename string, limits Limits) (model.RawDocument, error) {
	if len(data) == 0 {
		return model.RawDocument{}, &ValidationError{
			Code:    EmptyDocument,
			Message: "document has no content",
		}
	}

	if limits.MaxSizeBytes > 0 && int64(len(data)) > limits.MaxSizeBytes {
		return model.RawDocument{}, &ValidationError{
			Code:    FileTooLarge,
			Message: fmt.Sprintf("size %d exceeds limit %d", len(data), limits.MaxSizeBytes),
		}
	}

	if !typeAllowed(declaredType, limits.AllowedTypes) {
		return model.RawDocument{}, &ValidationError{
			Code:    UnsupportedType,
			Message: fmt.Sprintf("declared type %q is not accepted", declaredType),
		}
	}

	detected := mimetype.Detect(data)
	if !signatureMatches(detected, declaredType) {
		return model.RawDocument{}, &ValidationError{
			Code:    SignatureMismatch,
			Message: fmt.Sprintf("declared type %q but content looks like %q", declaredType, detected.String()),
		}
	}

	sum := sha256.Sum256(data)

	return model.RawDocument{
		ID:           uuid.NewString(),
		Content:      data,
		DeclaredType: declaredType,
		DetectedType: detected.String(),
		Filename:     filename,
		Size:         int64(len(data)),
		SHA256:       hex.EncodeToString(sum[:]),
	}, nil
}

func typeAllowed(declared string, allowed []string) bool {
	for _, t := range allowed {
		if t == declared {
			return true
		}
	}
	return false
}

// signatureMatches verifies the detected magic-byte type against the declared
// MIME type. mimetype arranges detections in a hierarchy, so a declared
// text/plain accepts any textual detection (CSV, etc.).
func signatureMatches(detected *mimetype.MIME, declared string) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
	}
	return false
}
