package domain

import "errors"

var (
	ErrCameraNotFound    = errors.New("camera not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrQueueClosed       = errors.New("dispatch queue closed")
	ErrActionNotFound    = errors.New("camera action not found")
	ErrNotificationsOff  = errors.New("notifications are not enabled")
	ErrSignerUnavailable = errors.New("claim signer unavailable")
)
