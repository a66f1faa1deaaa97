package forms

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"gtncr/internal/audit"
	"gtncr/internal/models"
	"gtncr/internal/response"
)

var headerContextColumns = []string{"PO Key", "Customer", "Bid", "PO Rev", "CR Rev", "Record No", "Record Date"}

var exportRowColumns = map[string][]string{
	"cr":   {"Item No", "Part Number", "Part Description", "Rev", "Qty", "Review Cycles", "Remarks"},
	"ped":  {"Item No", "Part Number", "Part Description", "Rev", "Qty", "PED Cycles", "Dept Notes", "Remarks"},
	"lead": {"Item No", "Part Number", "Part Description", "Rev", "Qty", "Customer Required Date", "Standard Lead Time", "GTN Agreed Date", "Remarks"},
}

// Export flattens every stored form of a kind into one table — one output
// row per form row, prefixed with the header context — and streams it as
// xlsx (default) or csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request, kindName string) {
	k, ok := KindByName(kindName)
	if !ok {
		response.Err(w, "Unknown form kind", 404)
		return
	}
	if h.requireAccess(w, r, k) == nil {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	keys, err := h.formKeys(k)
	if err != nil {
		response.Err(w, "Failed to export forms", 500)
		return
	}

	headers := append(append([]string{}, headerContextColumns...), exportRowColumns[k.Name]...)
	var data [][]string
	for _, poKey := range keys {
		form, err := h.loadForm(k, poKey)
		if err != nil {
			response.Err(w, "Failed to export forms", 500)
			return
		}
		if form == nil {
			continue
		}
		ctx := []string{form.PoKey, form.Customer, form.Bid, form.PO, form.CR, form.RecordNo, form.RecordDate}
		if len(form.Rows) == 0 {
			// Headers without rows still appear in the export.
			line := append(append([]string{}, ctx...), make([]string, len(exportRowColumns[k.Name]))...)
			data = append(data, line)
			continue
		}
		for _, row := range form.Rows {
			data = append(data, append(append([]string{}, ctx...), exportRowValues(k, row)...))
		}
	}

	audit.LogRequest(h.DB, h.Hub, r, audit.ActionExport, k.Name+"_form", "",
		fmt.Sprintf("Exported %d %s rows as %s", len(data), k.Title, format))

	if format == "csv" {
		ExportCSV(w, k.Name+"-forms.csv", headers, data)
		return
	}
	ExportExcel(w, k.Title, headers, data)
}

func (h *Handler) formKeys(k Kind) ([]string, error) {
	rows, err := h.DB.Query("SELECT po_key FROM " + k.HeaderTable + " ORDER BY po_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func exportRowValues(k Kind, row models.FormRow) []string {
	base := []string{row.ItemNo, row.PartNumber, row.PartDescription, row.Rev, row.Qty}
	switch k.Name {
	case "cr":
		return append(base, strings.Join(row.Cycles, " | "), row.Remarks)
	case "ped":
		return append(base, strings.Join(row.Cycles, " | "), strings.Join(row.Notes, " | "), row.Remarks)
	default:
		return append(base, row.CustomerRequiredDate, row.StandardLeadTime, row.GtnAgreedDate, row.Remarks)
	}
}

// ExportCSV writes data as a CSV attachment.
func ExportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// ExportExcel writes data as an xlsx attachment with a styled header row.
func ExportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 18)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ReplaceAll(strings.ToLower(sheetName), " ", "-")))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
