package services

import "errors"

var (
	ErrReadOnlyMode  = errors.New("editor is development only")
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrReservedName  = errors.New("reserved slug name")
	ErrBadRequest    = errors.New("bad request")
)
