package models

type ContentItemKind string

const (
	ContentItemFile      ContentItemKind = "file"
	ContentItemLink      ContentItemKind = "link"
	ContentItemAddonFile ContentItemKind = "addon-file"
)

// ContentItem is one downloadable entry in the merged bundle listing. Key is
// set for stored objects, URL for shareable links.
type ContentItem struct {
	Kind        ContentItemKind `json:"kind"`
	Name        string          `json:"name"`
	Key         string          `json:"key,omitempty"`
	Size        int64           `json:"size,omitempty"`
	URL         string          `json:"url,omitempty"`
	Description string          `json:"description,omitempty"`
}

type BundleLink struct {
	ID          int    `json:"id"`
	BundleType  string `json:"bundle_type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
