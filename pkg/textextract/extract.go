package textextract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrExtraction            = errors.New("text extraction failed")
	ErrEmptyContent          = fmt.Errorf("%w: no text content extracted", ErrExtraction)
	ErrCapabilityUnavailable = fmt.Errorf("%w: no reader available for format", ErrExtraction)
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatDOC  Format = "doc"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Func reads the file at path and returns its normalized text.
type Func func(path string) (string, error)

var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOC,
	".xlsx": FormatXLSX,
	".xls":  FormatXLS,
	".csv":  FormatCSV,
	".json": FormatJSON,
	".txt":  FormatText,
	".md":   FormatText,
}

var mediaTypeFormats = map[string]Format{
	"application/pdf":          FormatPDF,
	"application/msword":       FormatDOC,
	"application/vnd.ms-excel": FormatXLS,
	"text/csv":                 FormatCSV,
	"application/json":         FormatJSON,
	"text/plain":               FormatText,
	"text/markdown":            FormatText,
}

// Resolve picks the format for a file. The extension decides when it is
// known, then the declared media type; anything else is read as plain text.
func Resolve(path, mediaType string) Format {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}

	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if f, ok := mediaTypeFormats[mt]; ok {
		return f
	}
	switch {
	case strings.Contains(mt, "wordprocessingml"):
		return FormatDOCX
	case strings.Contains(mt, "spreadsheetml"):
		return FormatXLSX
	}

	return FormatText
}

type Dispatcher struct {
	extractors map[Format]Func
}

type Option func(*Dispatcher)

// WithExtractor registers or replaces the reader for a format.
func WithExtractor(format Format, fn Func) Option {
	return func(d *Dispatcher) {
		d.extractors[format] = fn
	}
}

// WithoutExtractor removes the reader for a format, making it unavailable.
func WithoutExtractor(format Format) Option {
	return func(d *Dispatcher) {
		delete(d.extractors, format)
	}
}

// NewDispatcher returns a dispatcher with every built-in reader registered.
// Legacy .doc and .xls have no reader and fail with ErrCapabilityUnavailable.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		extractors: map[Format]Func{
			FormatPDF:  extractPDF,
			FormatDOCX: extractDOCX,
			FormatXLSX: extractXLSX,
			FormatCSV:  extractCSV,
			FormatJSON: extractJSON,
			FormatText: extractText,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Extract(path, mediaType string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrExtraction, path)
	}

	blank, err := isBlank(path, info.Size())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if blank {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, path)
	}

	format := Resolve(path, mediaType)
	fn, ok := d.extractors[format]
	if !ok || fn == nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrCapabilityUnavailable, format, path)
	}

	text, err := fn(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", ErrExtraction, format, path, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, path)
	}

	return text, nil
}

// isBlank reports whether the file holds only whitespace. It stops at the
// first other byte, so binary documents are not read in full.
func isBlank(path string, size int64) (bool, error) {
	if size == 0 {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		switch b {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			return false, nil
		}
	}
}

// SupportedFormats lists formats that currently have a reader.
func (d *Dispatcher) SupportedFormats() []Format {
	formats := make([]Format, 0, len(d.extractors))
	for f, fn := range d.extractors {
		if fn != nil {
			formats = append(formats, f)
		}
	}
	slices.Sort(formats)
	return formats
}
