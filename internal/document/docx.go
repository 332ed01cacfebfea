package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/lukasjarosch/go-docx"
)

var ErrTemplate = errors.New("invalid docx template")

// {Name}, possibly split across runs by Word: tags between the braces are tolerated.
var rePlaceholder = regexp.MustCompile(`\{((?:<[^>]+>)*[A-Za-z_](?:[A-Za-z0-9_]|<[^>]+>)*)\}`)

var reTag = regexp.MustCompile(`<[^>]+>`)

// lineBreak stands in for "\n" while go-docx rewrites the runs; it is swapped
// for a <w:br/> once the document has been written.
const lineBreak = "\u2028"

const runBreak = `</w:t><w:br/><w:t xml:space="preserve">`

func isTemplatePart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	dir, file := path.Split(name)
	if dir != "word/" || !strings.HasSuffix(file, ".xml") {
		return false
	}
	return strings.HasPrefix(file, "header") || strings.HasPrefix(file, "footer")
}

// Fill copies a .docx template to out with every known {Name} placeholder
// replaced. Unknown placeholders are left in place.
func Fill(template io.ReaderAt, size int64, values map[string]string, out io.Writer) error {
	raw, err := io.ReadAll(io.NewSectionReader(template, 0, size))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	used, err := TemplateFields(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return err
	}

	doc, err := docx.OpenBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	defer doc.Close()

	replacements := docx.PlaceholderMap{}
	multiline := false
	for _, name := range used {
		value, ok := values[name]
		if !ok {
			continue
		}
		value = strings.ReplaceAll(value, "\r\n", "\n")
		if strings.Contains(value, "\n") {
			multiline = true
			value = strings.ReplaceAll(value, "\n", lineBreak)
		}
		replacements[name] = value
	}
	if len(replacements) > 0 {
		if err := doc.ReplaceAll(replacements); err != nil {
			return fmt.Errorf("fill template: %w", err)
		}
	}

	if !multiline {
		return doc.Write(out)
	}
	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return err
	}
	return expandLineBreaks(buf.Bytes(), out)
}

// expandLineBreaks rewrites the text parts of a filled document, turning the
// line break marker into <w:br/> inside the surrounding run.
func expandLineBreaks(filled []byte, out io.Writer) error {
	zr, err := zip.NewReader(bytes.NewReader(filled), int64(len(filled)))
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		if err := copyPart(zw, f); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func copyPart(zw *zip.Writer, f *zip.File) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
	if err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if !isTemplatePart(f.Name) {
		_, err = io.Copy(w, rc)
		return err
	}
	content, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	_, err = w.Write(bytes.ReplaceAll(content, []byte(lineBreak), []byte(runBreak)))
	return err
}

func placeholderName(match []byte) string {
	inner := match[1 : len(match)-1]
	return string(reTag.ReplaceAll(inner, nil))
}

// TemplateFields lists the placeholder names used by a .docx template.
func TemplateFields(template io.ReaderAt, size int64) ([]string, error) {
	zr, err := zip.NewReader(template, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	seen := map[string]struct{}{}
	found := false
	for _, f := range zr.File {
		if !isTemplatePart(f.Name) {
			continue
		}
		if f.Name == "word/document.xml" {
			found = true
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		for _, m := range rePlaceholder.FindAll(content, -1) {
			seen[placeholderName(m)] = struct{}{}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrTemplate)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
