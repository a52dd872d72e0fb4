package manifest

import "errors"

var (
	ErrBlobMissing       = errors.New("manifest: blob missing")
	ErrInvalidSignature  = errors.New("manifest: invalid signature")
	ErrHeightMismatch    = errors.New("manifest: height mismatch")
	ErrPreviousMismatch  = errors.New("manifest: previous link mismatch")
	ErrBucketIDMismatch  = errors.New("manifest: bucket id mismatch")
	ErrPublicationRegression = errors.New("manifest: published cannot regress")
	ErrAuthorNotOwner    = errors.New("manifest: author must remain an owner")
	ErrGenesisAuthorMismatch = errors.New("manifest: genesis author mismatch")
)
