package repository

import "errors"

var ErrNotFound = errors.New("not found")

// ErrSessionOpen is returned when a session is created while another one is still active or paused.
var ErrSessionOpen = errors.New("another session is still open")

var ErrEmailTaken = errors.New("email already registered")
