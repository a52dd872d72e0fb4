package blob

import "github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"

// Lister is implemented by stores that can enumerate their own contents.
// MemStore and BoltStore both satisfy it.
type Lister interface {
	List() ([]jaxcrypto.Hash, error)
}

// ReferenceCount reports which hashes currently held in store are not
// present in live (the union of every pin reachable from the bucket log's
// history — see manifest.CollectPins). It never deletes anything; per
// spec.md §9's open question on garbage collection, JaxBucket ships
// "never delete" as the default and leaves sweeping to an operator-driven
// collaborator that acts on this report.
func ReferenceCount(store Lister, live map[jaxcrypto.Hash]struct{}) ([]jaxcrypto.Hash, error) {
	all, err := store.List()
	if err != nil {
		return nil, err
	}

	var candidates []jaxcrypto.Hash
	for _, h := range all {
		if _, ok := live[h]; !ok {
			candidates = append(candidates, h)
		}
	}
	return candidates, nil
}
