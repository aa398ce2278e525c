// Package export renders approval forms for fully approved requests.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
)

// Sheet layout
const (
	sheetName = "Approval"

	cellTitle       = "A1"
	cellRequestID   = "B3"
	cellRequester   = "B4"
	cellDepartment  = "B5"
	cellSchool      = "B6"
	cellCategory    = "B7"
	cellSubmittedAt = "B8"

	detailsRowStart = 10
)

var stepHeaders = []string{"#", "Role", "Status", "Approved by", "Approved at", "Comment", "Signature"}

// ApprovalFormRenderer writes approval forms as xlsx workbooks
type ApprovalFormRenderer struct {
	logger *zap.Logger
}

// NewApprovalFormRenderer creates a new ApprovalFormRenderer
func NewApprovalFormRenderer(logger *zap.Logger) *ApprovalFormRenderer {
	return &ApprovalFormRenderer{logger: logger}
}

func (r *ApprovalFormRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (r *ApprovalFormRenderer) Extension() string {
	return ".xlsx"
}

// Render builds the workbook in memory and writes it to w
func (r *ApprovalFormRenderer) Render(ctx context.Context, req *entity.Request, w io.Writer) error {
	data, err := BuildFormData(req)
	if err != nil {
		return err
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	title, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := r.fillHeader(file, data, title, bold); err != nil {
		return fmt.Errorf("failed to fill header: %w", err)
	}

	next, err := r.fillDetails(file, data, bold)
	if err != nil {
		return fmt.Errorf("failed to fill details: %w", err)
	}

	if err := r.fillSteps(file, data, next+1, bold); err != nil {
		return fmt.Errorf("failed to fill approval chain: %w", err)
	}

	if err := file.SetColWidth(sheetName, "A", "A", 22); err != nil {
		return err
	}
	if err := file.SetColWidth(sheetName, "B", "G", 20); err != nil {
		return err
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Approval form rendered",
		zap.String("request_id", req.ID),
		zap.Int("step_count", len(data.Steps)))
	return nil
}

func (r *ApprovalFormRenderer) fillHeader(file *excelize.File, data *FormData, titleStyle, labelStyle int) error {
	if err := file.SetCellValue(sheetName, cellTitle, data.Title); err != nil {
		return err
	}
	if err := file.SetCellStyle(sheetName, cellTitle, cellTitle, titleStyle); err != nil {
		return err
	}

	rows := []struct {
		cell  string
		label string
		value interface{}
	}{
		{cellRequestID, "Request ID", data.RequestID},
		{cellRequester, "Requester", data.Requester},
		{cellDepartment, "Department", data.Department},
		{cellSchool, "School", data.School},
		{cellCategory, "Category", data.Category},
		{cellSubmittedAt, "Submitted", data.SubmittedAt.Format(dateLayout)},
	}
	for _, row := range rows {
		_, rowNum, err := excelize.CellNameToCoordinates(row.cell)
		if err != nil {
			return err
		}
		labelCell := fmt.Sprintf("A%d", rowNum)
		if err := file.SetCellValue(sheetName, labelCell, row.label); err != nil {
			return err
		}
		if err := file.SetCellStyle(sheetName, labelCell, labelCell, labelStyle); err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, row.cell, row.value); err != nil {
			return err
		}
	}
	return nil
}

// fillDetails returns the first free row after the details block
func (r *ApprovalFormRenderer) fillDetails(file *excelize.File, data *FormData, labelStyle int) (int, error) {
	row := detailsRowStart
	for _, field := range data.Details {
		labelCell := fmt.Sprintf("A%d", row)
		if err := file.SetCellValue(sheetName, labelCell, field.Label); err != nil {
			return 0, err
		}
		if err := file.SetCellStyle(sheetName, labelCell, labelCell, labelStyle); err != nil {
			return 0, err
		}
		if err := file.SetCellValue(sheetName, fmt.Sprintf("B%d", row), field.Value); err != nil {
			return 0, err
		}
		row++
	}
	return row, nil
}

func (r *ApprovalFormRenderer) fillSteps(file *excelize.File, data *FormData, headerRow int, headerStyle int) error {
	for col, header := range stepHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, headerRow)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(stepHeaders), headerRow)
	if err := file.SetCellStyle(sheetName, first, last, headerStyle); err != nil {
		return err
	}

	for i, step := range data.Steps {
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return err
		}
		values := []interface{}{step.Sequence, step.Role, step.Status, step.ApprovedBy, step.ApprovedAt, step.Comment, step.Signature}
		if err := file.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to set step row %d: %w", i+1, err)
		}
	}
	return nil
}

var _ port.FormRenderer = (*ApprovalFormRenderer)(nil)
