package node

import (
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// CollectReachable walks the tree rooted at ref and returns every hash it
// touches: the root node's own hash, every directory node's hash, every
// file node's hash, and every file's content hash. This is the "hashes
// reachable from entry" set spec.md §4.6 step 3 folds into a Manifest's
// pins.
func CollectReachable(ref Ref, blobs blob.Store) (map[jaxcrypto.Hash]struct{}, error) {
	out := map[jaxcrypto.Hash]struct{}{}
	if err := collect(ref, blobs, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(ref Ref, blobs blob.Store, out map[jaxcrypto.Hash]struct{}) error {
	out[ref.Link.Hash] = struct{}{}

	n, err := Load(ref, blobs)
	if err != nil {
		return fmt.Errorf("node: collect reachable: %w", err)
	}

	if n.IsFile() {
		out[n.ContentLink.Hash] = struct{}{}
		return nil
	}

	for _, child := range n.Children {
		childRef := Ref{Link: child.Link, Secret: child.Secret}
		if _, seen := out[childRef.Link.Hash]; seen {
			continue
		}
		if err := collect(childRef, blobs, out); err != nil {
			return err
		}
	}
	return nil
}
