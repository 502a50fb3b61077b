package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidRange        = errors.New("operation range outside document bounds")
	ErrStaleSyncWindow     = errors.New("retained operation log no longer covers requested version")
)
