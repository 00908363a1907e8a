package blockgraph

import (
	"sort"
	"strings"
)

// Index maps block ids to blocks. It is built once per document and never
// mutated afterwards, so any number of goroutines may read it.
type Index struct {
	byID map[string]Block
}

// BuildIndex indexes blocks by id in a single pass. When an id appears more
// than once the last occurrence wins.
func BuildIndex(blocks []Block) *Index {
	byID := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	return &Index{byID: byID}
}

// Get returns the block with the given id.
func (idx *Index) Get(id string) (Block, bool) {
	b, ok := idx.byID[id]
	return b, ok
}

// Len returns the number of indexed blocks.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// IDSet is a set of block ids.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// followed yields the targets of the relationships traversal follows.
func followed(b Block) []string {
	var out []string
	for _, rel := range b.Relationships {
		if rel.Type == RelationChild || rel.Type == RelationValue {
			out = append(out, rel.IDs...)
		}
	}
	return out
}

// Closure returns the ids reachable from root through CHILD and VALUE
// relationships, root included. The walk is iterative and keeps a visited
// set, so cyclic or malformed graphs terminate. Ids missing from the index
// are skipped.
func Closure(root Block, idx *Index) IDSet {
	return walk(root, idx, popLast)
}

func popLast(stack []string) int { return len(stack) - 1 }

// walk runs the reachability traversal. next picks which pending id to visit;
// the resulting set does not depend on that choice.
func walk(root Block, idx *Index, next func([]string) int) IDSet {
	seen := IDSet{root.ID: {}}
	stack := followed(root)
	for len(stack) > 0 {
		i := next(stack)
		id := stack[i]
		stack[i] = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen.Has(id) {
			continue
		}
		b, ok := idx.Get(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		stack = append(stack, followed(b)...)
	}
	return seen
}

// ExtractText joins the text of every LINE block in ids, ordered by stream
// position, one line per row.
func ExtractText(ids IDSet, idx *Index) PageText {
	lines := make([]Block, 0, len(ids))
	for id := range ids {
		b, ok := idx.Get(id)
		if !ok || !b.IsLine() {
			continue
		}
		lines = append(lines, b)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Sequence != lines[j].Sequence {
			return lines[i].Sequence < lines[j].Sequence
		}
		return lines[i].ID < lines[j].ID
	})

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return PageText{
		Text:      strings.Join(texts, "\n"),
		LineCount: len(lines),
	}
}
