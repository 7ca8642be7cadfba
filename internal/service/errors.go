package service

import (
	"errors"
	"time"
)

// RejectCode identifies why a session-scoped request was refused. A rejected
// buzz is the normal majority outcome, so codes travel as values, never
// panics.
type RejectCode string

const (
	CodeSessionNotFound       RejectCode = "SESSION_NOT_FOUND"
	CodeSessionInactive       RejectCode = "SESSION_INACTIVE"
	CodeSessionExpired        RejectCode = "SESSION_EXPIRED"
	CodeSessionFull           RejectCode = "SESSION_FULL"
	CodePlayerNotFound        RejectCode = "PLAYER_NOT_FOUND"
	CodePlayerInactive        RejectCode = "PLAYER_INACTIVE"
	CodePlayerInactiveTooLong RejectCode = "PLAYER_INACTIVE_TOO_LONG"
	CodeMissingFields         RejectCode = "MISSING_FIELDS"
	CodeInvalidAction         RejectCode = "INVALID_ACTION"
	CodeTimestampTooOld       RejectCode = "TIMESTAMP_TOO_OLD"
	CodeInvalidTimestamp      RejectCode = "INVALID_TIMESTAMP"
	CodeBuzzLocked            RejectCode = "BUZZ_LOCKED"
	CodeBuzzTooFrequent       RejectCode = "BUZZ_TOO_FREQUENT"
	CodeSuspiciousActivity    RejectCode = "SUSPICIOUS_ACTIVITY"
	CodeSuspiciousPattern     RejectCode = "SUSPICIOUS_PATTERN"
	CodeRateLimited           RejectCode = "RATE_LIMITED"
)

// RejectionError is a typed, recoverable refusal of a session request.
// RetryAfter is set on rate-limit rejections so a blocked player sees the
// cool-down.
type RejectionError struct {
	Code       RejectCode
	Message    string
	RetryAfter time.Duration
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func reject(code RejectCode, message string) *RejectionError {
	return &RejectionError{Code: code, Message: message}
}

// RejectCodeOf extracts the rejection code from err, or "" if err is not a
// rejection.
func RejectCodeOf(err error) RejectCode {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
