package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, blob []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

const documentXML = `<w:document><w:body>` +
	`<w:p><w:r><w:t>Spett.le {F_Ragione}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{F_</w:t></w:r><w:r><w:t>Pec}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">{Descrizione}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{Sconosciuto}</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func TestFill(t *testing.T) {
	template := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   documentXML,
		"word/footer1.xml":    `<w:ftr><w:p><w:r><w:t>{R_Nome} int. {R_Interno}</w:t></w:r></w:p></w:ftr>`,
		"word/styles.xml":     `<w:styles>{F_Ragione}</w:styles>`,
	})

	values := map[string]string{
		"F_Ragione":   "Rossi e Figli Srl",
		"F_Pec":       "rossi@pec.it",
		"Descrizione": "la fornitura dei seguenti beni:\nN. 1 TV",
		"R_Nome":      "Anna Bianchi",
		"R_Interno":   "214",
	}

	var out bytes.Buffer
	require.NoError(t, Fill(bytes.NewReader(template), int64(len(template)), values, &out))

	doc := readPart(t, out.Bytes(), "word/document.xml")
	assert.Contains(t, doc, "Spett.le Rossi e Figli Srl")
	assert.Contains(t, doc, "rossi@pec.it")
	assert.NotContains(t, doc, "{F_")
	assert.Contains(t, doc, `la fornitura dei seguenti beni:</w:t><w:br/><w:t xml:space="preserve">N. 1 TV`)
	assert.Contains(t, doc, "{Sconosciuto}")

	assert.Contains(t, readPart(t, out.Bytes(), "word/footer1.xml"), "Anna Bianchi int. 214")
	assert.Equal(t, `<w:styles>{F_Ragione}</w:styles>`, readPart(t, out.Bytes(), "word/styles.xml"))
}

func TestFillRejectsNonDocx(t *testing.T) {
	var out bytes.Buffer
	err := Fill(bytes.NewReader([]byte("nope")), 4, nil, &out)
	assert.True(t, errors.Is(err, ErrTemplate))

	noDocument := buildDocx(t, map[string]string{"word/styles.xml": "<w:styles/>"})
	err = Fill(bytes.NewReader(noDocument), int64(len(noDocument)), nil, &out)
	assert.True(t, errors.Is(err, ErrTemplate))
}

func TestTemplateFields(t *testing.T) {
	template := buildDocx(t, map[string]string{
		"word/document.xml": documentXML,
		"word/header2.xml":  `<w:hdr><w:t>{P_Numero} del {P_Data}</w:t></w:hdr>`,
	})

	fields, err := TemplateFields(bytes.NewReader(template), int64(len(template)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Descrizione", "F_Pec", "F_Ragione", "P_Data", "P_Numero", "Sconosciuto"}, fields)
}
