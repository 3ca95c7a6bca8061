package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"ictrack/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ResidentExportHeader 住民表导出表头
var ResidentExportHeader = []string{
	"MRN",
	"Name",
	"Unit",
	"Room",
	"DOB",
	"Status",
	"Payor",
	"On Census",
	"Last Seen",
	"Last Missing",
}

// AuditExportHeader 审计轨迹导出表头
var AuditExportHeader = []string{
	"Timestamp",
	"Action",
	"Entity",
	"Summary",
}

// GenerateCensusWorkbook 生成感染控制台账 Excel（住民 + 审计轨迹两个 sheet）
func GenerateCensusWorkbook(doc *domain.Document) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	residentRows := make([][]any, 0, len(doc.Residents))
	for _, r := range doc.Residents {
		onCensus := "No"
		if r.ActiveOnCensus {
			onCensus = "Yes"
		}
		residentRows = append(residentRows, []any{
			r.MRN, r.Name, r.Unit, r.Room, r.DOBRaw, r.Status, r.Payor,
			onCensus, formatTimePtr(r.LastSeenCensusAt), formatTimePtr(r.LastMissingCensusAt),
		})
	}

	auditRows := make([][]any, 0, len(doc.AuditLog))
	for i := len(doc.AuditLog) - 1; i >= 0; i-- {
		e := doc.AuditLog[i]
		auditRows = append(auditRows, []any{
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			string(e.Action), e.EntityTag, e.Summary,
		})
	}

	if err := writeSheet(f, "Residents", ResidentExportHeader, residentRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, "Audit Trail", AuditExportHeader, auditRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	// 删除默认的 Sheet1，激活住民表
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Residents"); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheet 写一个 sheet：表头 + 数据行
func writeSheet(f *excelize.File, sheetName string, headers []string, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetName, err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i := 0; i < len(headers); i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, 18); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowIdx+2, err)
		}
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
