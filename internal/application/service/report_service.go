package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/domain/entity"
)

// ReportService exports a workflow's audit trail as an Excel report for
// HR record keeping.
type ReportService interface {
	// ExportAuditReport writes the xlsx report for a workflow to w.
	ExportAuditReport(ctx context.Context, workflowID string, w io.Writer) error
}

type reportServiceImpl struct {
	engine engine.Engine
	logger *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(eng engine.Engine, logger *zap.Logger) ReportService {
	return &reportServiceImpl{
		engine: eng,
		logger: logger,
	}
}

const (
	sheetSummary = "Summary"
	sheetLevels  = "Approval Levels"
	sheetHistory = "History"
)

// ExportAuditReport builds the report workbook for a workflow
func (s *reportServiceImpl) ExportAuditReport(ctx context.Context, workflowID string, w io.Writer) error {
	wf, err := s.engine.Get(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("export audit report: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.fillSummary(f, wf); err != nil {
		return err
	}
	if err := s.fillLevels(f, wf); err != nil {
		return err
	}
	if err := s.fillHistory(f, wf); err != nil {
		return err
	}

	// The default sheet carries the summary
	f.SetSheetName("Sheet1", sheetSummary)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Audit report exported",
		zap.String("workflow_id", workflowID),
		zap.Int("history_entries", len(wf.WorkflowHistory)))

	return nil
}

func (s *reportServiceImpl) fillSummary(f *excelize.File, wf *entity.ApprovalWorkflow) error {
	rows := [][2]interface{}{
		{"Workflow ID", wf.ID},
		{"Request ID", wf.RequestID},
		{"Request Type", wf.RequestType},
		{"Title", wf.RequestTitle},
		{"Requested By", wf.RequestedBy},
		{"Requested For", wf.RequestedFor},
		{"Status", wf.Status},
		{"Priority", wf.Priority},
		{"Current Level", wf.CurrentLevel},
		{"Total Levels", wf.TotalLevels},
		{"Progress", fmt.Sprintf("%d%%", engine.ProgressPercent(wf))},
		{"Submitted At", formatTime(&wf.SubmittedAt)},
		{"Deadline", formatTime(wf.Deadline)},
		{"Completed At", formatTime(wf.CompletedAt)},
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow("Sheet1", cell, &[]interface{}{row[0], row[1]}); err != nil {
			return fmt.Errorf("failed to fill summary: %w", err)
		}
	}
	return nil
}

func (s *reportServiceImpl) fillLevels(f *excelize.File, wf *entity.ApprovalWorkflow) error {
	if _, err := f.NewSheet(sheetLevels); err != nil {
		return fmt.Errorf("failed to create levels sheet: %w", err)
	}

	header := []interface{}{"Level", "Approver Role", "Required", "Can Delegate", "Timeout (h)", "Status", "Approver", "Action Date", "Comments"}
	if err := f.SetSheetRow(sheetLevels, "A1", &header); err != nil {
		return fmt.Errorf("failed to fill levels: %w", err)
	}

	for i, level := range wf.ApprovalLevels {
		row := []interface{}{
			level.Level,
			level.ApproverRole,
			level.IsRequired,
			level.CanDelegate,
			level.TimeoutHours,
			level.Status,
			level.ApproverID,
			formatTime(level.ActionDate),
			level.Comments,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetLevels, cell, &row); err != nil {
			return fmt.Errorf("failed to fill levels: %w", err)
		}
	}
	return nil
}

func (s *reportServiceImpl) fillHistory(f *excelize.File, wf *entity.ApprovalWorkflow) error {
	if _, err := f.NewSheet(sheetHistory); err != nil {
		return fmt.Errorf("failed to create history sheet: %w", err)
	}

	header := []interface{}{"#", "Action", "Performed By", "Performed At", "Level", "Previous Status", "New Status", "Comments"}
	if err := f.SetSheetRow(sheetHistory, "A1", &header); err != nil {
		return fmt.Errorf("failed to fill history: %w", err)
	}

	for i, entry := range wf.WorkflowHistory {
		row := []interface{}{
			i + 1,
			entry.Action,
			entry.PerformedBy,
			formatTime(&entry.PerformedAt),
			entry.Level,
			entry.PreviousStatus,
			entry.NewStatus,
			entry.Comments,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetHistory, cell, &row); err != nil {
			return fmt.Errorf("failed to fill history: %w", err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
