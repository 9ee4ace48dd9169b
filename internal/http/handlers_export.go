package http

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"duorico/internal/catalog"
	"duorico/internal/core"

	"github.com/xuri/excelize/v2"
)

// handleExport streams every transaction visible to the viewer as an XLSX
// workbook, newest period first. An optional year parameter narrows the
// export to one year.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), viewerFrom(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if y := r.URL.Query().Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeDomainError(w, r, core.ErrInvalidYear)
			return
		}
		kept := txs[:0]
		for _, t := range txs {
			if t.Period.Year == year {
				kept = append(kept, t)
			}
		}
		txs = kept
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[j].Period.Before(txs[i].Period)
	})

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Transactions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create worksheet")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Year", "Month", "Type", "Description", "Category", "Amount", "Shared", "Installment"}
	for i, h := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, h)
	}

	for idx, t := range txs {
		row := idx + 2

		label, labelErr := catalog.Label(t.Category, t.Type)
		if labelErr != nil {
			label = t.Category
		}
		shared := "no"
		if t.CoupleID != "" {
			shared = "yes"
		}
		installment := ""
		if t.IsRecurring {
			installment = fmt.Sprintf("%d/%d", t.InstallmentNumber, t.TotalInstallments)
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), t.Period.Year)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.Period.Month)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(t.Type))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), t.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), label)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), t.Amount.String())
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), shared)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), installment)
	}

	f.SetColWidth(sheetName, "D", "D", 30)
	f.SetColWidth(sheetName, "E", "E", 18)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(w); err != nil {
		writeError(w, http.StatusInternalServerError, "write workbook")
	}
}
