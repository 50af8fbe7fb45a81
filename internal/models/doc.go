// Package models defines domain entities and persistence interfaces for the dronewatch dashboard.
//
// The package contains three categories of types:
//
// 1. Provider and backend data: values that arrive from, or are sent to, external services
//   - [Identity] : Opaque user handle returned by the identity provider
//   - [DetectionRecord] : Flat detection row after normalization
//   - [DetectionPayload] : Tagged union over the shapes of a nested detection_data field
//   - [Detection] : Body posted to the detections backend
//   - [Settings] : Per-user settings row
//
// 2. Persistent entities: local SQLite-backed models
//   - [CacheEntry] : Persisted local cache entry (last-known identity, provider token)
//   - [ReportExport] : History of exported detection reports
//
// 3. Navigation: [Route] names every view in the dashboard shell and whether it is protected.
//
// Persistent entities implement the [Model] interface and are stored through a [Repository].
package models
