// Package repositories implements SQLite persistence for the dashboard's local state.
//
// Key Implementations:
//   - [CacheEntryRepository] : key/value rows of the persisted local cache, with upsert by key
//   - [ReportExportRepository] : history of exported detection reports
//
// Adapters over the cache table:
//   - [IdentityCache] : last-known serialized identity under the "site" key
//   - [TokenCache] : the provider session under the "provider_session" key; implements [services.TokenStore]
//
// Lookups that match nothing return errors wrapping [ErrNotFound].
package repositories
