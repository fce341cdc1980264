package core

import "errors"

var (
	ErrStackUnderflow   = errors.New("transform stack underflow")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAlreadyRecording = errors.New("geometry recording already in progress")
	ErrEmptyRecording   = errors.New("geometry recording is empty")
	ErrNotRecording     = errors.New("no geometry recording in progress")
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrMissingParameter = errors.New("missing material parameter")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrFrameNotActive   = errors.New("no frame in progress")
	ErrNotReady         = errors.New("no frame presented yet")
)
