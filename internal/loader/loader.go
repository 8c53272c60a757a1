// Package loader reads a corpus directory into page-level documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"paperrag/internal/chunker"
	"paperrag/internal/domain"
)

var skippedDirs = map[string]struct{}{
	".git":         {},
	".paperrag":    {},
	"node_modules": {},
	"__pycache__":  {},
}

// CommandRunner runs an external program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

type Config struct {
	Root       string
	Extensions []string
	PDFToText  string
}

// DirectoryLoader walks Root in lexical order and emits one document per page.
type DirectoryLoader struct {
	root       string
	extensions []string
	pdftotext  string
	run        CommandRunner
	logger     log.FieldLogger
}

type Option func(*DirectoryLoader)

// WithRunner replaces the command runner used for PDF extraction.
func WithRunner(run CommandRunner) Option {
	return func(l *DirectoryLoader) { l.run = run }
}

func WithLogger(logger log.FieldLogger) Option {
	return func(l *DirectoryLoader) { l.logger = logger }
}

func New(cfg Config, opts ...Option) *DirectoryLoader {
	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		exts = []string{".pdf", ".txt", ".md"}
	}
	l := &DirectoryLoader{
		root:       cfg.Root,
		extensions: exts,
		pdftotext:  cfg.PDFToText,
		run:        ExecRunner,
		logger:     log.StandardLogger(),
	}
	if l.pdftotext == "" {
		l.pdftotext = "pdftotext"
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *DirectoryLoader) Load(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", l.root)
	}

	var files []string
	// WalkDir visits entries in lexical order.
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if slices.Contains(l.extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	var docs []domain.Document
	for _, path := range files {
		pages, err := l.readPages(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		source := chunker.NormalizeSource(l.root, path)
		docs = append(docs, toDocuments(source, pages)...)
	}
	l.logger.Infof("Loaded %d pages from %d files", len(docs), len(files))
	return docs, nil
}

// pages holds extracted text per page. paged is false for formats without pages.
type pages struct {
	texts []string
	paged bool
}

func (l *DirectoryLoader) readPages(ctx context.Context, path string) (pages, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		out, err := l.run(ctx, l.pdftotext, "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			return pages{}, err
		}
		return pages{texts: splitPages(string(out)), paged: true}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pages{}, err
	}
	text := string(data)
	if strings.Contains(text, "\f") {
		return pages{texts: splitPages(text), paged: true}, nil
	}
	return pages{texts: []string{text}}, nil
}

// splitPages splits on form feeds; pdftotext ends every page with one, so a
// trailing empty page is dropped.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func toDocuments(source string, p pages) []domain.Document {
	docs := make([]domain.Document, 0, len(p.texts))
	for i, text := range p.texts {
		doc := domain.Document{SourcePath: source, Text: text}
		if p.paged {
			page := i
			doc.Page = &page
		}
		docs = append(docs, doc)
	}
	return docs
}
