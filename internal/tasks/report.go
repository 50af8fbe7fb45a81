package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
	"golang.org/x/sync/errgroup"
)

// ExportRecorder keeps a history of written reports. [repositories.ReportExportRepository] satisfies it.
type ExportRecorder interface {
	Create(export *models.ReportExport) error
}

// ReportOpts configures [ExportReports].
type ReportOpts struct {
	Title     string
	Location  *time.Location
	Formats   []string // default: pdf
	OutputDir string   // default: working directory
	Filename  string   // overrides the default name when exactly one format is written
	OwnerID   string
	Recorder  ExportRecorder
}

// ReportFile is one written report.
type ReportFile struct {
	Format string
	Path   string
	Err    error
}

// ReportResult lists every file written by [ExportReports], in the order the formats were first given.
type ReportResult struct {
	Table Table
	Files []ReportFile
}

// Table is the rendered report shared by every output format.
type Table = formatter.Table

// ExportReports renders records once and writes the table in each requested format concurrently.
//
// A failing format does not stop the others. The returned error is the first write failure.
func ExportReports(ctx context.Context, prog chan<- ProgressUpdate, records []models.DetectionRecord, opts ReportOpts) (*ReportResult, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{formatter.FormatPDF}
	}

	resolved := make([]string, 0, len(formats))
	for _, f := range formats {
		format, err := formatter.ParseFormat(f)
		if err != nil {
			return nil, err
		}
		// aliases such as md and markdown name the same file
		if !slices.Contains(resolved, format) {
			resolved = append(resolved, format)
		}
	}

	sendProgress(prog, buildingReportUpdate(len(records)))
	table := formatter.BuildTable(opts.Title, records, formatter.DefaultColumns(opts.Location))

	result := &ReportResult{Table: table, Files: make([]ReportFile, len(resolved))}

	var g errgroup.Group
	for i, format := range resolved {
		name := formatter.Filename(format)
		if opts.Filename != "" && len(resolved) == 1 {
			name = opts.Filename
		}
		path := filepath.Join(opts.OutputDir, name)

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				result.Files[i] = ReportFile{Format: format, Path: path, Err: err}
				return err
			}
			written, err := formatter.WriteReport(path, format, table)
			result.Files[i] = ReportFile{Format: format, Path: written, Err: err}
			if err != nil {
				return fmt.Errorf("%s report: %w", format, err)
			}
			return nil
		})
	}
	err := g.Wait()

	for i, file := range result.Files {
		sendProgress(prog, reportWrittenUpdate(i+1, len(result.Files), file))
		if file.Err != nil || opts.Recorder == nil {
			continue
		}
		if recErr := opts.Recorder.Create(models.NewReportExport(opts.OwnerID, file.Format, file.Path, len(table.Rows))); recErr != nil && err == nil {
			err = fmt.Errorf("failed to record export: %w", recErr)
		}
	}
	return result, err
}
