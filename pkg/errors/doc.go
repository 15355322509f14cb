// Package errors provides structured errors with codes and HTTP status mapping.
//
// Handlers turn service errors into an *Error and write its HTTPStatusCode:
//
//	import apperrors "github.com/tendant/simple-emailchange/pkg/errors"
//
//	if err != nil {
//		e := apperrors.FromEmailChangeError(err)
//		w.WriteHeader(e.HTTPStatusCode())
//	}
//
// Email change errors keep their caller-facing reason as Message and their
// kind under the "type" detail. Anything outside that taxonomy becomes
// ErrCodeInternal with the original error wrapped, so errors.Is still sees it.
package errors
