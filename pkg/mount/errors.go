package mount

import "errors"

var (
	ErrNotFound      = errors.New("mount: not found")
	ErrNotADirectory = errors.New("mount: not a directory")
	ErrNotAFile      = errors.New("mount: not a file")
	ErrAlreadyExists = errors.New("mount: already exists")
	ErrParentMissing = errors.New("mount: parent directory missing")
	ErrDstExists     = errors.New("mount: destination already exists")
	ErrNotAuthorized     = errors.New("mount: not authorized")
	ErrSignFailed        = errors.New("mount: sign failed")
	ErrStoreFailed       = errors.New("mount: store failed")
	ErrIntegrityMismatch = errors.New("mount: integrity mismatch")
	ErrDecryptFailed     = errors.New("mount: decrypt failed")
)
