package document

import "fmt"

// CacheKey identifies one cacheable artifact.
// A new ContentVersion for an ID makes every older key of that ID stale.
type CacheKey struct {
	ID             string
	Variant        Variant
	ContentVersion string
}

// NewCacheKey creates a cache key
func NewCacheKey(id string, v Variant, contentVersion string) CacheKey {
	return CacheKey{ID: id, Variant: v, ContentVersion: contentVersion}
}

// String returns the canonical "id:variant:version" form of the key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ID, k.Variant, k.ContentVersion)
}

// Slot returns the (id, variant) pairing, ignoring the version
func (k CacheKey) Slot() string {
	return fmt.Sprintf("%s:%s", k.ID, k.Variant)
}
