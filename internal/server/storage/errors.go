package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrRecordExists indicates that a record with this id already exists
	ErrRecordExists = errors.New("record already exists")

	// ErrRecordNotFound indicates that the record is absent (never created or deleted)
	ErrRecordNotFound = errors.New("record not found")

	// ErrStaleWrite indicates that the write carries an older timestamp
	// than the stored version of the record
	ErrStaleWrite = errors.New("stale write")
)
