package corpus

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/portfolio-ai/concierge/internal/model"
)

// SourceResume marks passages imported from a résumé document.
const SourceResume = "resume"

// ImportOptions configures ImportPDF.
type ImportOptions struct {
	// Title prefixes every passage title. Defaults to the file name.
	Title  string
	Tags   []string
	Source string
}

// ExtractPDFText returns the plain text of the PDF at path.
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return SanitizeText(buf.String()), nil
}

// ImportPDF extracts a PDF and splits its text into passages.
func ImportPDF(path string, opts ImportOptions) ([]model.Passage, error) {
	text, err := ExtractPDFText(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%s has no extractable text: %w", path, model.ErrInvalidInput)
	}
	return TextPassages(text, path, opts), nil
}

// TextPassages splits text into passages with ids derived from name.
func TextPassages(text, name string, opts ImportOptions) []model.Passage {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	title := opts.Title
	if title == "" {
		title = base
	}
	source := opts.Source
	if source == "" {
		source = SourceResume
	}
	slug := slugify(base)

	parts := SplitAnswer(text, MaxPassageLength)
	out := make([]model.Passage, len(parts))
	for i, content := range parts {
		out[i] = model.Passage{
			ID:           fmt.Sprintf("chunk_%s_%d", slug, i+1),
			Title:        fmt.Sprintf("%s (part %d)", title, i+1),
			Content:      content,
			Tags:         append([]string(nil), opts.Tags...),
			Source:       source,
			Competencies: []string{},
		}
	}
	return out
}

// SanitizeText drops NUL bytes and non-printing control characters other
// than common whitespace.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			b.WriteRune(ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('_')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "_")
}
