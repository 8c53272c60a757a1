package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"paperrag/internal/domain"
)

// Default sizes, in runes.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 80
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Segmenter splits documents into overlapping segments of at most chunkSize runes.
// It tries paragraph breaks first, then line breaks, then spaces, then single runes.
type Segmenter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSegmenter creates a segmenter. Parameters are checked by Validate and Segment.
func NewSegmenter(chunkSize, overlap int) *Segmenter {
	return &Segmenter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Validate rejects sizes that would never advance through a page.
func (s *Segmenter) Validate() error {
	if s.chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, s.chunkSize)
	}
	if s.overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfiguration, s.overlap)
	}
	if s.overlap >= s.chunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfiguration, s.overlap, s.chunkSize)
	}
	return nil
}

// Segment splits documents in the order given. Segments of the same (source, page)
// pair are always contiguous in the output: a document whose key was already seen
// is emitted right after the earlier documents with that key.
// PositionIndex and ID are left for AssignIDs.
func (s *Segmenter) Segment(documents []domain.Document) ([]domain.Segment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var order []string
	byKey := make(map[string][]domain.Document)
	for _, d := range documents {
		key := PageKey(d.SourcePath, d.Page)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], d)
	}

	var segments []domain.Segment
	for _, key := range order {
		for _, d := range byKey[key] {
			for _, text := range s.SplitText(d.Text) {
				segments = append(segments, domain.Segment{
					Text:       text,
					SourcePath: d.SourcePath,
					Page:       copyPage(d.Page),
				})
			}
		}
	}
	return segments, nil
}

// SplitText splits a single text. Every returned piece is trimmed, non-empty and
// at most chunkSize runes long.
func (s *Segmenter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Segmenter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitOn(text, sep) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}
	return out
}

// merge joins small pieces greedily. When a segment is full, pieces are dropped from
// its front until at most overlap runes remain; those start the next segment.
func (s *Segmenter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	joinCost := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}

	var out, current []string
	total := 0
	for _, piece := range pieces {
		l := runeLen(piece)
		if len(current) > 0 && total+l+joinCost(len(current)) > s.chunkSize {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (total > 0 && total+l+joinCost(len(current)) > s.chunkSize) {
				total -= runeLen(current[0]) + joinCost(len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l + joinCost(len(current)-1)
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		out = append(out, doc)
	}
	return out
}

func splitOn(text, sep string) []string {
	raw := strings.Split(text, sep)
	out := raw[:0]
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func copyPage(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
