// Package excel serializes merged rows into an xlsx workbook.
package excel

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"seller-export-service/internal/merge"
)

const sheetName = "Products + Sellers"

var headers = buildHeaders()

func buildHeaders() []string {
	h := []string{
		"Title", "ASIN", "URL", "Brand", "Price", "Currency", "In Stock",
		"Categories", "Seller ID", "Seller Name", "Domain Code", "Rating",
		"Rating %", "Rating Count", "About Seller", "Seller Store URL",
		"Seller Details (JSON)",
	}
	windows := []string{"30d", "90d", "12m", "Lifetime"}
	for _, w := range windows {
		for star := 1; star <= 5; star++ {
			h = append(h, fmt.Sprintf("Feedback %s %d-star", w, star))
		}
	}
	return h
}

// Workbook builds a single-sheet xlsx: bold header row, one row per merged
// record, columns in the fixed export order.
func Workbook(rows []merge.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	boldID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, boldID); err != nil {
		return nil, err
	}

	for ri := range rows {
		if err := writeRow(f, ri+2, &rows[ri]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, r *merge.Row) error {
	values := []any{
		r.Title, r.ASIN, r.URL, r.Brand,
		deref(r.Price), deref(r.Currency), deref(r.InStock),
		r.Categories, r.SellerID, deref(r.SellerName), r.DomainCode,
		deref(r.Rating), deref(r.PercentageRating), deref(r.CountRating),
		deref(r.AboutSeller), r.StoreURL, r.SellerDetails,
	}
	for wi := range r.Feedback {
		for si := range r.Feedback[wi] {
			values = append(values, deref(r.Feedback[wi][si]))
		}
	}

	for ci, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(ci+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
