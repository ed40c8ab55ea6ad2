// Package model defines the content units that flow through the
// hashing and storage pipeline. Blocks are produced by an external
// document parser and consumed read-only here.
package model

// BlockType tags the structural kind of a content block.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockCode      BlockType = "code"
	BlockList      BlockType = "list"
	BlockCallout   BlockType = "callout"
	BlockLatex     BlockType = "latex"
	BlockTable     BlockType = "table"
	BlockGeneric   BlockType = "generic"
)

// ListKind distinguishes the flavors of list blocks.
type ListKind string

const (
	ListOrdered   ListKind = "ordered"
	ListUnordered ListKind = "unordered"
	ListTask      ListKind = "task"
)

// Block is one content unit of a parsed document: a type tag, the raw
// text, a [StartOffset, EndOffset) span into the source, and
// type-specific metadata. Metadata participates in hashing, so two
// blocks with identical text but different metadata (say, heading
// level 1 vs 2) have different digests.
type Block struct {
	Type        BlockType
	Content     string
	StartOffset int
	EndOffset   int
	Metadata    Metadata
}

// NewBlock constructs a block with the given span and metadata.
func NewBlock(t BlockType, content string, start, end int, meta Metadata) Block {
	return Block{
		Type:        t,
		Content:     content,
		StartOffset: start,
		EndOffset:   end,
		Metadata:    meta,
	}
}

// SpanLength returns the number of source bytes the block covers.
func (b *Block) SpanLength() int {
	if b.EndOffset < b.StartOffset {
		return 0
	}
	return b.EndOffset - b.StartOffset
}

// IsEmpty reports whether the block carries no content text.
func (b *Block) IsEmpty() bool {
	return len(b.Content) == 0
}

// Metadata carries the type-specific attributes of a block. Exactly
// one group of fields is meaningful, selected by Kind; the rest stay
// at their zero values. A flat struct (rather than an interface per
// kind) keeps the canonical encoding a single fixed field sequence.
type Metadata struct {
	Kind BlockType `cbor:"1,keyasint"`

	// Heading
	HeadingLevel uint8  `cbor:"2,keyasint,omitempty"`
	HeadingID    string `cbor:"3,keyasint,omitempty"`

	// Code
	CodeLanguage  string `cbor:"4,keyasint,omitempty"`
	CodeLineCount int    `cbor:"5,keyasint,omitempty"`

	// List
	ListKind      ListKind `cbor:"6,keyasint,omitempty"`
	ListItemCount int      `cbor:"7,keyasint,omitempty"`

	// Callout
	CalloutKind     string `cbor:"8,keyasint,omitempty"`
	CalloutTitle    string `cbor:"9,keyasint,omitempty"`
	CalloutStandard bool   `cbor:"10,keyasint,omitempty"`

	// Latex
	LatexDisplay bool `cbor:"11,keyasint,omitempty"`

	// Table
	TableRows    int      `cbor:"12,keyasint,omitempty"`
	TableColumns int      `cbor:"13,keyasint,omitempty"`
	TableHeaders []string `cbor:"14,keyasint,omitempty"`
}

// HeadingMetadata describes a heading block. id is the optional anchor
// identifier; pass "" when the document has none.
func HeadingMetadata(level uint8, id string) Metadata {
	return Metadata{Kind: BlockHeading, HeadingLevel: level, HeadingID: id}
}

// CodeMetadata describes a fenced code block.
func CodeMetadata(language string, lineCount int) Metadata {
	return Metadata{Kind: BlockCode, CodeLanguage: language, CodeLineCount: lineCount}
}

// ListMetadata describes a list block.
func ListMetadata(kind ListKind, itemCount int) Metadata {
	return Metadata{Kind: BlockList, ListKind: kind, ListItemCount: itemCount}
}

// CalloutMetadata describes a callout/admonition block. standard
// reports whether kind is one of the conventional callout types.
func CalloutMetadata(kind, title string, standard bool) Metadata {
	return Metadata{Kind: BlockCallout, CalloutKind: kind, CalloutTitle: title, CalloutStandard: standard}
}

// LatexMetadata describes a LaTeX block; display selects block (vs
// inline) math.
func LatexMetadata(display bool) Metadata {
	return Metadata{Kind: BlockLatex, LatexDisplay: display}
}

// TableMetadata describes a table block.
func TableMetadata(rows, columns int, headers []string) Metadata {
	return Metadata{Kind: BlockTable, TableRows: rows, TableColumns: columns, TableHeaders: headers}
}

// GenericMetadata is the metadata for paragraphs and any block type
// without attributes of its own.
func GenericMetadata() Metadata {
	return Metadata{Kind: BlockGeneric}
}
