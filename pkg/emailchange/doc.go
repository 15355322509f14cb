// Package emailchange lets an authenticated account change its email address only
// after the new address (and optionally the old one) has been proven.
//
// # Overview
//
// The emailchange package provides:
//   - Selector/token generation with SHA-256 hashes and constant time verification
//   - Numeric one-time codes as an alternative to links
//   - One pending request per account, with a retry window
//   - Failed attempt lockout that destroys the request
//   - Optional dual confirmation from both the old and the new address
//   - Repositories for PostgreSQL, Redis, JSON files and memory
//
// # Basic Usage
//
//	import "github.com/tendant/simple-emailchange/pkg/emailchange"
//
//	repo := emailchange.NewPostgresEmailChangeRepository(pool, accountStore)
//	builder, _ := emailchange.NewRouteURLBuilder("https://app.example.com", map[string]string{
//		"verify_email_change": "/email-change/verify",
//	})
//	service := emailchange.NewEmailChangeService(
//		repo,
//		builder,
//		emailchange.WithRequestLifetime(time.Hour),
//		emailchange.WithMaxAttempts(5),
//	)
//
//	// Step 1: the signed in user asks for a new address
//	signature, err := service.GenerateSignature(ctx, "verify_email_change", user, "new@example.com", nil)
//	// send signature.SignedURL to new@example.com
//
//	// Step 2: the link is opened
//	user, err = service.ValidateTokenAndFetchAccount(ctx, selector, token)
//
//	// Step 3: apply the change, then persist the account
//	oldEmail, err := service.ConfirmEmailChange(ctx, user)
//
// # Dual Confirmation
//
// With WithRequireOldEmailConfirmation(true) the signature also carries
// OldEmailSignedURL, which has confirm_old=1 and is sent to the current address.
// ConfirmEmailChange fails until both links have been validated, in either order.
//
// # One-Time Codes
//
//	otpService := emailchange.NewOtpEmailChangeService(repo, nil)
//	result, err := otpService.GenerateOtp(ctx, user, "new@example.com")
//	oldEmail, err := otpService.VerifyOtp(ctx, user, result.Code)
//
// # Errors
//
// Failures are returned as typed errors matching ErrInvalidRequest, ErrExpired,
// ErrTooManyRequests, ErrTooManyAttempts, ErrEmailAlreadyInUse and ErrSameEmail
// through errors.Is. Reason returns the message safe to show to users.
//
// # Concurrency
//
// Services hold no mutable state. Two concurrent requests for the same account can
// both pass the pending check; the PostgreSQL repository rejects the second insert
// through a unique constraint, other backends keep the last write. Attempt counters
// are read-modify-write and may under-count under concurrent guesses.
package emailchange
