package chunker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperrag/internal/domain"
)

func TestAssignIDsResetsPositionPerPage(t *testing.T) {
	segments := []domain.Segment{
		{SourcePath: "A", Page: page(1), Text: "a"},
		{SourcePath: "A", Page: page(1), Text: "b"},
		{SourcePath: "A", Page: page(2), Text: "c"},
		{SourcePath: "B", Page: page(1), Text: "d"},
		{SourcePath: "C", Text: "e"},
		{SourcePath: "C", Text: "f"},
	}

	got := AssignIDs(segments)

	ids := make([]string, len(got))
	for i, seg := range got {
		ids[i] = seg.ID
	}
	assert.Equal(t, []string{"A:1:0", "A:1:1", "A:2:0", "B:1:0", "C:none:0", "C:none:1"}, ids)
	assert.Equal(t, 1, got[1].PositionIndex)
	assert.Equal(t, 0, got[2].PositionIndex)
}

func TestAssignIDsLeavesInputUntouched(t *testing.T) {
	segments := []domain.Segment{{SourcePath: "A", Page: page(1)}, {SourcePath: "A", Page: page(1)}}
	_ = AssignIDs(segments)

	assert.Empty(t, segments[0].ID)
	assert.Empty(t, segments[1].ID)
	assert.Zero(t, segments[1].PositionIndex)
}

func TestAssignIDsUniqueAcrossCorpus(t *testing.T) {
	var docs []domain.Document
	for _, src := range []string{"x.pdf", "y.pdf"} {
		for p := 0; p < 4; p++ {
			docs = append(docs, domain.Document{SourcePath: src, Page: page(p), Text: words(120)})
		}
	}
	docs = append(docs, domain.Document{SourcePath: "x.pdf", Page: page(0), Text: words(30)})

	segments, err := NewSegmenter(40, 8).Segment(docs)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, seg := range AssignIDs(segments) {
		assert.False(t, seen[seg.ID], "duplicate id %s", seg.ID)
		seen[seg.ID] = true
	}
	assert.Len(t, seen, len(segments))
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, "a.pdf:0", PageKey("a.pdf", page(0)))
	assert.Equal(t, "a.pdf:none", PageKey("a.pdf", nil))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		id       string
		source   string
		page     *int
		position int
		ok       bool
	}{
		{id: "data/a.pdf:3:2", source: "data/a.pdf", page: page(3), position: 2, ok: true},
		{id: "odd:name.pdf:0:7", source: "odd:name.pdf", page: page(0), position: 7, ok: true},
		{id: "notes.md:none:1", source: "notes.md", position: 1, ok: true},
		{id: "plain"},
		{id: "a.pdf:x:1"},
		{id: "a.pdf:1:-1"},
		{id: "1:2"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			source, p, position, ok := ParseID(tt.id)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.page, p)
			assert.Equal(t, tt.position, position)
		})
	}
}

func TestParseIDRoundTripsAssignedIDs(t *testing.T) {
	for _, seg := range AssignIDs([]domain.Segment{{SourcePath: "a:b.pdf", Page: page(4)}, {SourcePath: "c.md"}}) {
		source, p, position, ok := ParseID(seg.ID)
		require.True(t, ok)
		assert.Equal(t, seg.SourcePath, source)
		assert.Equal(t, seg.Page, p)
		assert.Equal(t, seg.PositionIndex, position)
	}
}

func TestNormalizeSource(t *testing.T) {
	root := filepath.Join("corpus", "papers")
	tests := []struct {
		name string
		root string
		path string
		want string
	}{
		{name: "inside root", root: root, path: filepath.Join(root, "sub", "a.pdf"), want: "sub/a.pdf"},
		{name: "unclean path", root: root, path: filepath.Join(root, "sub", "..", "b.pdf"), want: "b.pdf"},
		{name: "outside root", root: root, path: filepath.Join("elsewhere", "c.pdf"), want: "elsewhere/c.pdf"},
		{name: "no root", root: "", path: filepath.Join(".", "x", "..", "d.pdf"), want: "d.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSource(tt.root, tt.path))
		})
	}
}
