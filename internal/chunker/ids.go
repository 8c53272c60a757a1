package chunker

import (
	"path/filepath"
	"strconv"
	"strings"

	"paperrag/internal/domain"
)

// NoPage is rendered in place of a page number for documents without pages.
const NoPage = "none"

// PageKey renders the "source:page" prefix shared by all segments of one page.
func PageKey(source string, page *int) string {
	if page == nil {
		return source + ":" + NoPage
	}
	return source + ":" + strconv.Itoa(*page)
}

type idState struct {
	lastPageKey  string
	runningIndex int
}

func (st idState) next(pageKey string) idState {
	if pageKey == st.lastPageKey {
		st.runningIndex++
	} else {
		st.runningIndex = 0
	}
	st.lastPageKey = pageKey
	return st
}

// AssignIDs numbers segments within each page and derives "source:page:index" ids.
// The index restarts at 0 whenever the page key differs from the previous segment.
// The input slice is not modified.
func AssignIDs(segments []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	var st idState
	for i, seg := range segments {
		key := PageKey(seg.SourcePath, seg.Page)
		st = st.next(key)
		seg.PositionIndex = st.runningIndex
		seg.ID = key + ":" + strconv.Itoa(st.runningIndex)
		out[i] = seg
	}
	return out
}

// ParseID splits a segment id from the right, so sources may contain colons.
func ParseID(id string) (source string, page *int, position int, ok bool) {
	last := strings.LastIndex(id, ":")
	if last < 0 {
		return "", nil, 0, false
	}
	position, err := strconv.Atoi(id[last+1:])
	if err != nil || position < 0 {
		return "", nil, 0, false
	}
	head := id[:last]
	mid := strings.LastIndex(head, ":")
	if mid < 0 {
		return "", nil, 0, false
	}
	source, pageText := head[:mid], head[mid+1:]
	if pageText != NoPage {
		n, err := strconv.Atoi(pageText)
		if err != nil {
			return "", nil, 0, false
		}
		page = &n
	}
	return source, page, position, true
}

// NormalizeSource returns path relative to root with forward slashes.
// Paths outside root are only cleaned.
func NormalizeSource(root, path string) string {
	cleaned := filepath.Clean(path)
	if root != "" {
		rel, err := filepath.Rel(filepath.Clean(root), cleaned)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			cleaned = rel
		}
	}
	return filepath.ToSlash(cleaned)
}
