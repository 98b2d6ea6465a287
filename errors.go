package main

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrInvalidTime     = errors.New("invalid time format, expected HH:MM")
	ErrInvalidUsername = errors.New("invalid username")
	ErrAlreadyAdmin    = errors.New("user is already an admin")
	ErrAdminNotFound   = errors.New("admin not found")
	ErrUnknownAction   = errors.New("unknown action")
)
