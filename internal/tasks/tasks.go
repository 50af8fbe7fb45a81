package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/shared"
)

// APIClient defines the detections backend calls the feed makes.
// [services.APIService] satisfies it.
type APIClient interface {
	Get(ctx context.Context, path string) (*services.APIResponse, error)
	Post(ctx context.Context, path string, data []byte) (*services.APIResponse, error)
}

// DetectionFeed holds the normalized detection records for one view.
//
// The record list is swapped atomically: readers see the old list or the new one, never a mix.
// A feed belongs to the view that created it and is discarded with it.
type DetectionFeed struct {
	api    APIClient
	logger *log.Logger

	records   atomic.Pointer[[]models.DetectionRecord]
	lastErr   atomic.Pointer[error]
	seq       atomic.Uint64 // refreshes started
	committed atomic.Uint64 // newest refresh applied
	unmounted atomic.Bool
}

// NewDetectionFeed creates an empty feed.
func NewDetectionFeed(api APIClient, logger *log.Logger) *DetectionFeed {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DetectionFeed{api: api, logger: logger}
}

// Refresh fetches and normalizes the backend's detections and replaces the list.
//
// On failure the previous list is kept and the error is recorded for [DetectionFeed.Err].
// Results that arrive after [DetectionFeed.Unmount], or after a newer refresh has already
// been applied, are dropped.
func (f *DetectionFeed) Refresh(ctx context.Context) error {
	seq := f.seq.Add(1)

	records, err := f.fetch(ctx)
	if f.unmounted.Load() {
		f.logger.Debug("discarding detections for unmounted view", "seq", seq)
		return err
	}

	if err != nil {
		f.logger.Error("error fetching detections", "error", err)
		f.lastErr.Store(&err)
		return err
	}

	for {
		cur := f.committed.Load()
		if seq < cur {
			return nil
		}
		if f.committed.CompareAndSwap(cur, seq) {
			break
		}
	}
	f.records.Store(&records)
	f.lastErr.Store(nil)
	f.logger.Debug("detections refreshed", "count", len(records))
	return nil
}

// Fetch refreshes the feed and returns the current list, reporting progress on prog.
func (f *DetectionFeed) Fetch(ctx context.Context, prog chan<- ProgressUpdate) ([]models.DetectionRecord, error) {
	sendProgress(prog, fetchingDetectionsUpdate())
	if err := f.Refresh(ctx); err != nil {
		return nil, err
	}

	records := f.Records()
	sendProgress(prog, fetchedDetectionsUpdate(len(records)))
	return records, nil
}

func (f *DetectionFeed) fetch(ctx context.Context) ([]models.DetectionRecord, error) {
	resp, err := f.api.Get(ctx, services.DetectionsPath)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: detections returned status %d", shared.ErrNetworkFailure, resp.StatusCode)
	}

	envelopes, err := models.DecodeEnvelopes(resp.Body)
	if err != nil {
		return nil, err
	}
	return models.NormalizeAll(envelopes)
}

// Records returns the current list. Callers must not modify it.
func (f *DetectionFeed) Records() []models.DetectionRecord {
	if p := f.records.Load(); p != nil {
		return *p
	}
	return []models.DetectionRecord{}
}

// Err returns the error from the last refresh, or nil if it succeeded.
func (f *DetectionFeed) Err() error {
	if p := f.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Unmount detaches the feed from its view. Refreshes still in flight finish but change nothing.
func (f *DetectionFeed) Unmount() {
	f.unmounted.Store(true)
}

// Unmounted reports whether [DetectionFeed.Unmount] was called.
func (f *DetectionFeed) Unmounted() bool {
	return f.unmounted.Load()
}

// Log posts one detection to the backend. The response is not inspected; only transport errors are returned.
func (f *DetectionFeed) Log(ctx context.Context, d models.Detection) error {
	if err := d.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode detection: %w", err)
	}

	if _, err := f.api.Post(ctx, services.LogDetectionPath, data); err != nil {
		f.logger.Error("error logging detection", "error", err)
		return err
	}
	return nil
}
