package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("collaboration session not found")
	ErrInvalidSessionType = errors.New("invalid session type")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSessionClosed      = errors.New("session is completed or cancelled")
	ErrInvalidTransition  = errors.New("illegal session status transition")
	ErrNotMember          = errors.New("user is not an active participant")
	ErrNotAuthorized      = errors.New("role is not allowed to perform this action")
	ErrAuthentication     = errors.New("authentication failed")
	ErrStoreUnavailable   = errors.New("persistence unavailable")
)
