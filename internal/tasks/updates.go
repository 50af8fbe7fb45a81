package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchDetections Phase = iota
	LogDetections
	BuildReport
	WriteReport
)

func (p Phase) String() string {
	switch p {
	case FetchDetections:
		return "fetch_detections"
	case LogDetections:
		return "log_detections"
	case BuildReport:
		return "build_report"
	case WriteReport:
		return "write_report"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// A full or nil channel drops the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchingDetectionsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetections,
		Step:    1,
		Total:   1,
		Message: "Fetching detections...",
	}
}

func fetchedDetectionsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetections,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d detections", count),
		Data:    count,
	}
}

func loggedDetectionUpdate(step, total int, res LogResult) ProgressUpdate {
	if res.Err != nil {
		return ProgressUpdate{
			Phase:   LogDetections,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Detection.ObjectDetected, res.Err),
			Data:    res,
		}
	}
	return ProgressUpdate{
		Phase:   LogDetections,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%.2f)", step, total, res.Detection.ObjectDetected, res.Detection.Confidence),
		Data:    res,
	}
}

func buildingReportUpdate(rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Building report table (%d rows)...", rows),
	}
}

func reportWrittenUpdate(step, total int, res ReportFile) ProgressUpdate {
	if res.Err != nil {
		return ProgressUpdate{
			Phase:   WriteReport,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Format, res.Err),
			Data:    res,
		}
	}
	return ProgressUpdate{
		Phase:   WriteReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Path),
		Data:    res,
	}
}
