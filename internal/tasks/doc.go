// Package tasks holds the data operations behind the detection and settings views, with progress reporting
// for the long-running ones.
//
// # Detection Feed
//
// [DetectionFeed] fetches detection envelopes from the backend, flattens each one with [models.Normalize]
// and swaps the whole list in atomically. A failed refresh keeps the previous list and records the error.
// After [DetectionFeed.Unmount] results still in flight are dropped.
//
// The feed never posts on its own. [DetectionFeed.Log] sends one detection and [DetectionFeed.LogBatch]
// sends many, one request each, through a rate-limited worker pool.
//
// # Settings
//
// [SettingsSync] loads the per-user settings row, inserting the default row on first load, and saves
// the OBS server address.
//
// # Reports
//
// [ExportReports] builds the report table once and writes it in every requested format concurrently,
// optionally recording each file with an [ExportRecorder].
//
// # Progress Reporting
//
// Batch and export operations send [ProgressUpdate] values on a caller-owned channel. Sends never block:
// a full channel drops the update.
package tasks
