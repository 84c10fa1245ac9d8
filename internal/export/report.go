package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"toursync/internal/domain"
	"toursync/internal/models"

	"github.com/xuri/excelize/v2"
)

// Reporter builds an xlsx snapshot of the sync queue for operator
// diagnostics: what is waiting, what failed and why.
type Reporter struct {
	queue    domain.Queue
	maxRetry int
}

func NewReporter(queue domain.Queue, maxRetry int) *Reporter {
	if maxRetry <= 0 {
		maxRetry = models.DefaultMaxRetries
	}
	return &Reporter{queue: queue, maxRetry: maxRetry}
}

// WriteReport streams the workbook to w.
func (r *Reporter) WriteReport(ctx context.Context, w io.Writer) error {
	pending, err := r.queue.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	failed, err := r.queue.ListFailed(ctx, r.maxRetry)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sync Queue"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Resource", "Units", "Owner", "Amount", "Status", "Retries", "Last Error", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, list := range [][]models.PendingBooking{pending, failed} {
		for i := range list {
			writeBookingRow(f, sheetName, row, &list[i])
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveReport writes the workbook into dir and returns the file path.
func (r *Reporter) SaveReport(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("sync_queue_%s.xlsx", time.Now().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	if err := r.WriteReport(ctx, file); err != nil {
		return "", err
	}
	return path, nil
}

func writeBookingRow(f *excelize.File, sheetName string, row int, b *models.PendingBooking) {
	lastError := ""
	if b.LastError != nil {
		lastError = *b.LastError
	}

	values := []interface{}{
		b.ID, b.ResourceID, b.Units, b.OwnerID, b.TotalAmount,
		b.Status, b.RetryCount, lastError, b.CreatedAt.Format(time.RFC3339),
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}
