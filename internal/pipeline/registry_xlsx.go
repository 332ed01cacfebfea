package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"affidamento/internal"
	"affidamento/internal/reconcile"
	"affidamento/internal/util"
)

// SupplierImporter is the part of the registry used by the spreadsheet import.
type SupplierImporter interface {
	FindSupplierByContact(ctx context.Context, pec, email string) (*internal.SupplierRecord, error)
	CreateSupplier(ctx context.Context, fields internal.SupplierFields) (string, error)
}

type ImportResult struct {
	Created int
	Skipped int
	Invalid int
}

var supplierColumnLabels = map[internal.Field]string{
	internal.FieldLegalName:  "Ragione sociale",
	internal.FieldTaxCode:    "Codice fiscale",
	internal.FieldVATNumber:  "Partita IVA",
	internal.FieldStreet:     "Indirizzo",
	internal.FieldPostalCode: "CAP",
	internal.FieldCity:       "Comune",
	internal.FieldProvince:   "Provincia",
	internal.FieldEmail:      "Email",
	internal.FieldPEC:        "PEC",
	internal.FieldPhone:      "Telefono",
}

// headerProbes is checked in order; probes in exactProbes must match the whole header.
var headerProbes = []struct {
	field  internal.Field
	probes []string
}{
	{internal.FieldPEC, []string{"pec"}},
	{internal.FieldVATNumber, []string{"partita iva", "p.iva", "p. iva", "piva", "partitaiva"}},
	{internal.FieldTaxCode, []string{"codice fiscale", "codicefiscale", "c.f.", "cf"}},
	{internal.FieldLegalName, []string{"ragione sociale", "ragionesociale", "denominazione", "fornitore"}},
	{internal.FieldPostalCode, []string{"cap"}},
	{internal.FieldCity, []string{"comune", "città", "citta", "localit"}},
	{internal.FieldProvince, []string{"provincia", "prov"}},
	{internal.FieldStreet, []string{"indirizzo", "via", "sede"}},
	{internal.FieldEmail, []string{"email", "e-mail", "mail"}},
	{internal.FieldPhone, []string{"telefono", "tel", "cellulare"}},
}

// ImportSuppliersXLSX loads suppliers from the first sheet of a workbook.
// Rows without a legal name are invalid; rows whose PEC or email is already
// registered are skipped.
func ImportSuppliersXLSX(ctx context.Context, registry SupplierImporter, content []byte) (ImportResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{}
	var columns map[internal.Field]int
	for i, row := range rows {
		cells := normalizeCells(row)
		if isBlankRow(cells) {
			continue
		}
		if columns == nil {
			columns = inferSupplierColumns(cells)
			if _, ok := columns[internal.FieldLegalName]; !ok {
				return res, fmt.Errorf("row %d: no legal name column in %q", i+1, cells)
			}
			continue
		}

		fields := internal.SupplierFields{}
		for field, idx := range columns {
			fields.Set(field, util.NonEmptyPtr(pickCell(cells, idx, -1)))
		}
		if fields.Value(internal.FieldLegalName) == "" {
			res.Invalid++
			continue
		}

		existing, err := registry.FindSupplierByContact(ctx, fields.Value(internal.FieldPEC), fields.Value(internal.FieldEmail))
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		if _, err := registry.CreateSupplier(ctx, fields); err != nil {
			return res, fmt.Errorf("row %d: %w", i+1, err)
		}
		res.Created++
	}
	return res, nil
}

func inferSupplierColumns(headers []string) map[internal.Field]int {
	out := map[internal.Field]int{}
	for i, h := range headers {
		h = strings.ToLower(h)
		if h == "" {
			continue
		}
		for _, hp := range headerProbes {
			if _, taken := out[hp.field]; taken {
				continue
			}
			if headerMatches(h, hp.probes) {
				out[hp.field] = i
				break
			}
		}
	}
	return out
}

var exactProbes = map[string]bool{"cap": true, "cf": true, "tel": true, "via": true, "prov": true}

func headerMatches(header string, probes []string) bool {
	for _, probe := range probes {
		if exactProbes[probe] {
			if header == probe {
				return true
			}
			continue
		}
		if strings.Contains(header, probe) {
			return true
		}
	}
	return false
}

// ExportSuppliersXLSX writes the registry to a workbook with one column per field.
func ExportSuppliersXLSX(records []internal.SupplierRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"ID"}
	for _, field := range internal.AllFields {
		headers = append(headers, supplierColumnLabels[field])
	}
	headers = append(headers, "Aggiornato")
	writeRow(f, sheet, 1, stringsToAny(headers))

	for i, rec := range records {
		row := []any{rec.ID}
		for _, field := range internal.AllFields {
			row = append(row, rec.Value(field))
		}
		row = append(row, rec.UpdatedAt)
		writeRow(f, sheet, i+2, row)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportReviewXLSX writes the pending decisions of a quote: one row per
// conflict and one per novel value, in field order.
func ExportReviewXLSX(quote internal.QuoteRow, session *reconcile.Session, outputPath string) error {
	if session == nil {
		return fmt.Errorf("quote %s has no resolution session", quote.ID)
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	writeRow(f, sheet, 1, []any{"Preventivo", quote.Filename, "Fornitore", session.SupplierID, "Stato", string(session.State)})
	writeRow(f, sheet, 3, []any{"Campo", "Tipo", "Anagrafica", "Preventivo", "Scelta"})

	r := 4
	for _, c := range session.Conflicts() {
		choice := ""
		if side, ok := session.Choices[c.Field]; ok {
			choice = string(side)
		}
		writeRow(f, sheet, r, []any{supplierColumnLabels[c.Field], "conflitto", c.RegistryValue, c.ExtractionValue, choice})
		r++
	}
	for _, n := range session.NovelData() {
		writeRow(f, sheet, r, []any{supplierColumnLabels[n.Field], "nuovo dato", "", n.Value, ""})
		r++
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
