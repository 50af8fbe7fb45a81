package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// exportEntry is the JSON shape of one `detections history` row.
type exportEntry struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// printProgress writes each update to the output until progress is closed.
// The returned channel closes once every update has been written.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchDetections:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.BuildReport:
				r.writePlain("📝 %s\n", update.Message)
			default:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()
	return done
}

// DetectionsList fetches the detection log and prints it in the requested format.
func (r *Runner) DetectionsList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.requireIdentity(ctx, models.RouteDetections); err != nil {
		return err
	}

	loc, err := r.config.Location()
	if err != nil {
		return err
	}

	// Progress goes to the logger so piped csv/json output stays clean.
	progress := make(chan tasks.ProgressUpdate, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	records, err := tasks.NewDetectionFeed(r.api, r.logger).Fetch(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	format := strings.ToLower(cmd.String("format"))
	if format == "json" {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	t := formatter.BuildTable(r.config.Report.Title, records, formatter.DefaultColumns(loc))
	switch format {
	case "", "table":
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(t.Header...).
			Rows(t.Rows...)
		r.writePlain("%s\n", tbl.String())
		return r.writePlain("%d detections\n", len(t.Rows))
	case "csv":
		return formatter.WriteCSV(r.output, t)
	case "md", "markdown":
		return r.writePlain("%s", formatter.ToMarkdown(t))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// DetectionsLog posts a single detection from flags, or every detection in --file.
func (r *Runner) DetectionsLog(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.requireIdentity(ctx, models.RouteDetections); err != nil {
		return err
	}

	feed := tasks.NewDetectionFeed(r.api, r.logger)

	path := cmd.String("file")
	if path == "" {
		d := models.Detection{
			ObjectDetected: cmd.String("object"),
			Confidence:     cmd.Float("confidence"),
			Latitude:       cmd.Float("lat"),
			Longitude:      cmd.Float("lon"),
		}
		if err := feed.Log(ctx, d); err != nil {
			return err
		}
		return r.writePlain("✓ Logged %s (%.2f)\n", d.ObjectDetected, d.Confidence)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read detections file: %w", err)
	}
	var detections []models.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, path, err)
	}
	if len(detections) == 0 {
		return fmt.Errorf("%w: %s holds no detections", shared.ErrInvalidArgument, path)
	}

	r.logger.Info("logging detections", "count", len(detections), "file", path)
	r.writePlain("Logging %d detections...\n", len(detections))

	progress := make(chan tasks.ProgressUpdate, len(detections))
	done := r.printProgress(progress)
	result := feed.LogBatch(ctx, progress, detections, tasks.BatchOpts{
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("Sent: %d/%d\n", result.Succeeded, result.Total)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d detections failed", result.Failed, result.Total)
	}
	return nil
}

// DetectionsExport fetches the detection log and writes the report in each requested format.
func (r *Runner) DetectionsExport(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.requireIdentity(ctx, models.RouteDetections)
	if err != nil {
		return err
	}

	loc, err := r.config.Location()
	if err != nil {
		return err
	}

	formats := cmd.StringSlice("format")
	filename := cmd.String("filename")
	if filename == "" && len(formats) == 1 {
		if f, err := formatter.ParseFormat(formats[0]); err == nil && f == formatter.FormatPDF {
			filename = r.config.Report.Filename
		}
	}
	title := cmd.String("title")
	if title == "" {
		title = r.config.Report.Title
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.printProgress(progress)

	records, err := tasks.NewDetectionFeed(r.api, r.logger).Fetch(ctx, progress)
	if err != nil {
		close(progress)
		<-done
		return err
	}

	result, err := tasks.ExportReports(ctx, progress, records, tasks.ReportOpts{
		Title:     title,
		Location:  loc,
		Formats:   formats,
		OutputDir: cmd.String("output"),
		Filename:  filename,
		OwnerID:   identity.ID,
		Recorder:  r.exports,
	})
	close(progress)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Report Exported")
	r.writePlain("Rows: %d\n", len(result.Table.Rows))
	for _, file := range result.Files {
		if file.Err != nil {
			r.writePlain("✗ %s: %v\n", file.Format, file.Err)
			continue
		}
		r.writePlain("✓ %s\n", file.Path)
	}
	return err
}

// DetectionsHistory lists the signed-in user's recorded exports, newest first.
func (r *Runner) DetectionsHistory(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.requireIdentity(ctx, models.RouteDetections)
	if err != nil {
		return err
	}

	criteria := map[string]any{"owner_id": identity.ID, "limit": int(cmd.Int("limit"))}
	if f := cmd.String("format"); f != "" {
		format, err := formatter.ParseFormat(f)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["format"] = format
	}

	exports, err := r.exports.List(criteria)
	if err != nil {
		return err
	}

	entries := make([]exportEntry, len(exports))
	for i, e := range exports {
		entries[i] = exportEntry{
			ID:        e.ID(),
			Format:    e.Format(),
			Path:      e.Path(),
			Records:   e.RecordCount(),
			CreatedAt: e.CreatedAt(),
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No reports exported yet.\n")
	}

	r.writePlainHeader("Exported Reports")
	for _, e := range entries {
		r.writePlain("%s  %-8s  %4d rows  %s\n", e.CreatedAt.Local().Format(time.DateTime), e.Format, e.Records, e.Path)
	}
	return nil
}
