package manifest

import (
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
)

// ValidateOptions tunes Validate's strictness.
type ValidateOptions struct {
	// AcceptUnsignedLegacy skips signature and authorization checks
	// when true and m.Signature is empty — the migration mode spec.md
	// §4.9 describes for pre-signing manifests. Default false (strict).
	AcceptUnsignedLegacy bool
}

// Validate checks a proposed manifest next against its already-validated
// (or locally known) parent, per spec.md §4.9. parentLink must be the
// Link next.Previous is expected to reference; pass a zero Link only at
// genesis (parent == nil).
func Validate(next Manifest, nextLink codec.Link, parent *Manifest, parentLink codec.Link, opts ValidateOptions) error {
	isGenesis := parent == nil

	unsigned := opts.AcceptUnsignedLegacy && len(next.Signature) == 0

	if !unsigned {
		if !VerifySignature(next) {
			return ErrInvalidSignature
		}
	}

	if isGenesis {
		if next.Height != 0 || next.Previous != nil {
			return fmt.Errorf("manifest: genesis must have height 0 and no previous: %w", ErrHeightMismatch)
		}
		if !unsigned {
			if next.Author == nil || !next.IsOwner(*next.Author) {
				return ErrGenesisAuthorMismatch
			}
		}
		return nil
	}

	if next.Previous == nil || next.Previous.Hash != parentLink.Hash || next.Previous.Tag != parentLink.Tag {
		return ErrPreviousMismatch
	}
	if next.Height != parent.Height+1 {
		return ErrHeightMismatch
	}
	if next.BucketID != parent.BucketID {
		return ErrBucketIDMismatch
	}

	if !unsigned {
		if next.Author == nil || !parent.IsOwner(*next.Author) {
			return ErrNotAuthorized
		}
	}

	if parent.Published && !next.Published {
		return ErrPublicationRegression
	}

	if !unsigned {
		if next.Author != nil && !next.IsOwner(*next.Author) {
			return ErrAuthorNotOwner
		}
	}

	return nil
}
