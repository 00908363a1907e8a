// Package blockgraph indexes an OCR result graph and rebuilds per-page text
// from it.
//
// An OCR result is a flat list of blocks (pages, lines, words, table cells,
// key/value nodes) linked by typed relationships. The text of a page is the
// set of LINE blocks reachable from the page block through CHILD and VALUE
// relationships, ordered by their position in the original result stream.
package blockgraph

// BlockType identifies what a block represents in the OCR graph.
type BlockType string

const (
	TypePage             BlockType = "PAGE"
	TypeLine             BlockType = "LINE"
	TypeWord             BlockType = "WORD"
	TypeTable            BlockType = "TABLE"
	TypeCell             BlockType = "CELL"
	TypeMergedCell       BlockType = "MERGED_CELL"
	TypeKeyValueSet      BlockType = "KEY_VALUE_SET"
	TypeSelectionElement BlockType = "SELECTION_ELEMENT"
)

// RelationType identifies the kind of edge between two blocks.
type RelationType string

const (
	// RelationChild links a parent to its parts (page->line, line->word, table->cell).
	RelationChild RelationType = "CHILD"
	// RelationValue links a KEY block to its VALUE block.
	RelationValue RelationType = "VALUE"
)

// Relationship is one typed edge list of a block.
type Relationship struct {
	Type RelationType `json:"Type"`
	IDs  []string     `json:"Ids"`
}

// Block is a single node of the OCR result graph. Blocks are treated as
// immutable once received.
type Block struct {
	ID            string         `json:"Id"`
	Type          BlockType      `json:"BlockType"`
	Text          string         `json:"Text,omitempty"`
	Page          int            `json:"Page,omitempty"`
	Relationships []Relationship `json:"Relationships,omitempty"`

	// Sequence is the block's offset in the OCR result stream. It is the
	// reading order used when reconstructing text.
	Sequence int `json:"-"`
}

// IsPage reports whether b is a page root.
func (b Block) IsPage() bool {
	return b.Type == TypePage
}

// IsLine reports whether b is a leaf textual unit.
func (b Block) IsLine() bool {
	return b.Type == TypeLine
}

// PageText is the text reconstructed for one page.
type PageText struct {
	Text      string `json:"text"`
	LineCount int    `json:"lines_count"`
}

// Sequence assigns each block its offset in blocks, in place. Callers that
// concatenate several result pages must call it on the concatenated slice.
func Sequence(blocks []Block) {
	for i := range blocks {
		blocks[i].Sequence = i
	}
}

// Pages returns the page roots of blocks in stream order.
func Pages(blocks []Block) []Block {
	var pages []Block
	for _, b := range blocks {
		if b.IsPage() {
			pages = append(pages, b)
		}
	}
	return pages
}
