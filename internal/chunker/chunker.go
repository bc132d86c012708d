// Package chunker splits extracted text into overlapping windows for
// embedding and retrieval. Generalized from the teacher's flat rune-window
// SplitIntoChunks (internal/ingestion/extractor, since deleted along with
// the rest of the course/lesson ingestion domain) into a recursive
// separator-descent splitter matching spec.md §4.G's exact contract: try
// the coarsest separator first, recurse into any piece still over size,
// and only fall back to a hard character window when no separator helps.
package chunker

import "strings"

var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type Options struct {
	Size       int
	Overlap    int
	Separators []string
}

func DefaultOptions(size, overlap int) Options {
	return Options{Size: size, Overlap: overlap, Separators: defaultSeparators}
}

// Split returns the ordered, non-empty chunks of text. Each chunk after the
// first shares up to Overlap characters of trailing context with the chunk
// before it, so retrieval never loses a sentence straddling a boundary.
func Split(text string, opt Options) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if opt.Size <= 0 {
		opt.Size = 2500
	}
	if opt.Overlap < 0 || opt.Overlap >= opt.Size {
		opt.Overlap = 0
	}
	if len(opt.Separators) == 0 {
		opt.Separators = defaultSeparators
	}

	pieces := splitRecursive(text, opt.Separators, opt.Size-opt.Overlap)
	return applyOverlap(pieces, opt.Overlap)
}

// splitRecursive tries the first separator; any resulting piece still over
// size is split again with the remaining, finer-grained separators. The
// empty-string separator is the terminal case: a hard character window.
func splitRecursive(text string, separators []string, size int) []string {
	if len([]rune(text)) <= size {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardWindow(text, size)
	}

	sep, rest := separators[0], separators[1:]
	var parts []string
	if sep == "" {
		return hardWindow(text, size)
	}
	parts = strings.Split(text, sep)

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		piece := cur.String()
		if len([]rune(piece)) > size {
			out = append(out, splitRecursive(piece, rest, size)...)
		} else {
			out = append(out, piece)
		}
		cur.Reset()
	}

	for i, p := range parts {
		candidate := p
		if cur.Len() > 0 {
			candidate = cur.String() + sep + p
		}
		if len([]rune(candidate)) > size && cur.Len() > 0 {
			flush()
			cur.WriteString(p)
		} else {
			cur.Reset()
			cur.WriteString(candidate)
		}
		if i == len(parts)-1 {
			flush()
		}
	}
	return out
}

func hardWindow(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// applyOverlap prepends up to `overlap` trailing characters of the previous
// chunk onto each subsequent chunk, the deterministic shared-suffix/prefix
// contract spec.md §4.G requires.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return trimAll(pieces)
	}
	out := make([]string, 0, len(pieces))
	var prev string
	for i, p := range pieces {
		if i == 0 {
			out = append(out, p)
			prev = p
			continue
		}
		tail := prev
		if r := []rune(tail); len(r) > overlap {
			tail = string(r[len(r)-overlap:])
		}
		out = append(out, tail+p)
		prev = p
	}
	return trimAll(out)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		t := strings.TrimSpace(s)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
