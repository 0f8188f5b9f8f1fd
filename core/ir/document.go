package ir

import "fmt"

// ResourceID identifies an embedded resource within a Document.
type ResourceID string

// Resource is an embedded binary such as an image decoded from base64.
type Resource struct {
	Name     string     `json:"name,omitempty"`
	MimeType string     `json:"mime_type"`
	Data     []byte     `json:"data"`
	Metadata Properties `json:"metadata"`
}

// NewResource creates a resource with the given MIME type and payload.
func NewResource(mimeType string, data []byte) *Resource {
	return &Resource{MimeType: mimeType, Data: data}
}

// SourceInfo records where a document came from.
type SourceInfo struct {
	// Format is the reader's format name (e.g. "rst").
	Format string `json:"format"`
	// Hash is the BLAKE3 digest of the input, set when source info is preserved.
	Hash string `json:"hash,omitempty"`
	// Size is the input length in bytes.
	Size int `json:"size"`
	// Metadata holds reader-specific provenance.
	Metadata Properties `json:"metadata"`
}

// Document is the result of parsing one input.
type Document struct {
	Content   *Node                    `json:"content"`
	Resources map[ResourceID]*Resource `json:"resources,omitempty"`
	Metadata  Properties               `json:"metadata"`
	Source    *SourceInfo              `json:"source,omitempty"`
}

// NewDocument returns a document with an empty root.
func NewDocument() *Document {
	return &Document{Content: New(KindDocument)}
}

// Embed stores r and returns its generated identifier.
func (d *Document) Embed(r *Resource) ResourceID {
	if d.Resources == nil {
		d.Resources = make(map[ResourceID]*Resource)
	}
	id := ResourceID(fmt.Sprintf("res_%d", len(d.Resources)))
	for d.Resources[id] != nil {
		id += "_"
	}
	d.Resources[id] = r
	return id
}

// EmbedAs stores r under an explicit identifier, replacing any previous entry.
func (d *Document) EmbedAs(id ResourceID, r *Resource) {
	if d.Resources == nil {
		d.Resources = make(map[ResourceID]*Resource)
	}
	d.Resources[id] = r
}

// Title returns the "title" metadata entry, or "".
func (d *Document) Title() string {
	s, _ := d.Metadata.GetString(PropTitle)
	return s
}

// ParseOptions control how readers build a Document.
type ParseOptions struct {
	// PreserveSourceInfo enables span tracking and source hashing.
	// When false readers skip all offset bookkeeping.
	PreserveSourceInfo bool
	// EmbedResources decodes inline binaries (e.g. FB2 <binary>) into
	// Document.Resources.
	EmbedResources bool
	// MaxDepth bounds nesting of recursive constructs. Zero selects
	// DefaultMaxDepth.
	MaxDepth int
}

// DefaultMaxDepth is the nesting bound used when ParseOptions.MaxDepth is zero.
const DefaultMaxDepth = 64

// Depth returns the effective nesting bound.
func (o ParseOptions) Depth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
