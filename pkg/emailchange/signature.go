package emailchange

import (
	"math"
	"time"
)

// EmailChangeSignature is the artifact returned when a change is initiated.
// OldEmailSignedURL is only set when old email confirmation is required.
type EmailChangeSignature struct {
	SignedURL         string
	OldEmailSignedURL string
	ExpiresAt         time.Time
	generatedAt       time.Time
}

func newSignature(signedURL, oldEmailSignedURL string, expiresAt, generatedAt time.Time) *EmailChangeSignature {
	return &EmailChangeSignature{
		SignedURL:         signedURL,
		OldEmailSignedURL: oldEmailSignedURL,
		ExpiresAt:         expiresAt,
		generatedAt:       generatedAt,
	}
}

// IsDual reports whether the old address must also confirm
func (s *EmailChangeSignature) IsDual() bool {
	return s.OldEmailSignedURL != ""
}

// ExpiresInHours rounds the remaining lifetime up to whole hours, never less than 1
func (s *EmailChangeSignature) ExpiresInHours() int {
	from := s.generatedAt
	if from.IsZero() {
		from = time.Now()
	}
	hours := int(math.Ceil(s.ExpiresAt.Sub(from).Hours()))
	if hours < 1 {
		return 1
	}
	return hours
}
