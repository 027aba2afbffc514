package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Catalog is a metadata catalog attached to a media package, identified by
// its flavor.
type Catalog struct {
	ID     string `json:"id"`
	Flavor string `json:"flavor"`
	URL    string `json:"url"`
}

// MediaPackage is the portable description of an event's media and metadata.
// It is a value type: mutations return a modified copy, the receiver is never
// changed, so snapshots stay immutable once taken.
type MediaPackage struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Presenters []string          `json:"presenters,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Catalogs   []Catalog         `json:"catalogs,omitempty"`
	ACL        ACL               `json:"acl,omitempty"`
}

// ParseMediaPackage decodes a serialized media package.
func ParseMediaPackage(raw []byte) (MediaPackage, error) {
	var mp MediaPackage
	if err := json.Unmarshal(raw, &mp); err != nil {
		return MediaPackage{}, fmt.Errorf("parse media package: %w", err)
	}
	return mp, nil
}

// Encode serializes the media package.
func (mp MediaPackage) Encode() ([]byte, error) {
	return json.Marshal(mp)
}

func (mp MediaPackage) clone() MediaPackage {
	out := mp
	out.Presenters = slices.Clone(mp.Presenters)
	out.Metadata = maps.Clone(mp.Metadata)
	out.Catalogs = slices.Clone(mp.Catalogs)
	out.ACL = slices.Clone(mp.ACL)
	return out
}

// WithMetadata returns a copy with the metadata update applied.
func (mp MediaPackage) WithMetadata(update MetadataUpdate) MediaPackage {
	out := mp.clone()
	if update.Title != nil {
		out.Title = *update.Title
	}
	if update.Presenters != nil {
		out.Presenters = slices.Clone(*update.Presenters)
	}
	return out
}

// WithACL returns a copy carrying the given access control list.
func (mp MediaPackage) WithACL(acl ACL) MediaPackage {
	out := mp.clone()
	out.ACL = slices.Clone(acl)
	return out
}

// WithoutCatalog returns a copy with every catalog of the given flavor
// removed, and whether any catalog matched.
func (mp MediaPackage) WithoutCatalog(flavor string) (MediaPackage, bool) {
	out := mp.clone()
	kept := out.Catalogs[:0:0]
	removed := false
	for _, catalog := range out.Catalogs {
		if catalog.Flavor == flavor {
			removed = true
			continue
		}
		kept = append(kept, catalog)
	}
	out.Catalogs = kept
	return out, removed
}
