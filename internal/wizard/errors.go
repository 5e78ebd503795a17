package wizard

import "errors"

var (
	ErrNotOnLastSection  = errors.New("submit is only available on the last section")
	ErrSectionOutOfRange = errors.New("section out of range")
	ErrAlreadySubmitted  = errors.New("form already submitted")
	ErrSubmitInProgress  = errors.New("submission in progress")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidSessionID  = errors.New("invalid session id")
	ErrUnknownField      = errors.New("unknown file field")
	ErrInvalidPatch      = errors.New("invalid field patch")
)
