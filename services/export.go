package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// ExportService renders the paper catalog as an Excel workbook.
type ExportService struct {
	papers *store.PaperStore
}

func NewExportService(papers *store.PaperStore) *ExportService {
	return &ExportService{papers: papers}
}

// ExportPapers builds an xlsx workbook of papers matching the filter and
// returns its bytes plus the row count.
func (es *ExportService) ExportPapers(ctx context.Context, filter store.PaperFilter) ([]byte, int, error) {
	papers, err := es.papers.ListPapers(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load papers: %w", err)
	}

	data, err := buildWorkbook(papers)
	if err != nil {
		return nil, 0, err
	}
	return data, len(papers), nil
}

func buildWorkbook(papers []models.Paper) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Papers"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"ID", "Title", "Authors", "Categories", "Published", "PDF URL", "Indexed", "Favorite", "Summary",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, paper := range papers {
		row := rowIdx + 2
		values := []interface{}{
			paper.ID,
			paper.Title,
			paper.Authors,
			paper.Categories,
			paper.Published.Format("2006-01-02"),
			paper.PDFURL,
			paper.Indexed,
			paper.Favorite,
			paper.Summary,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "B", "B", 50)
	f.SetColWidth(sheetName, "C", "F", 25)
	f.SetColWidth(sheetName, "I", "I", 80)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
