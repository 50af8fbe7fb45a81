// Package services implements clients for the dashboard's external collaborators.
//
// # Identity Provider
//
// [GoTrueClient] implements [IdentityProvider] against a GoTrue server at {provider.url}/auth/v1.
// Password sign-in, sign-up, sign-out and user lookup are plain JSON calls carrying the project's anonymous key.
//
// Sessions are [oauth2.Token] values. [GoTrueClient.HTTPClient] wraps the current token in an [oauth2.ReuseTokenSource]
// so an expired access token is refreshed with the refresh_token grant before a request goes out.
// A [TokenStore] persists the session between runs; it is recovered when the first listener subscribes.
//
// Listeners registered with [GoTrueClient.OnAuthStateChange] are called on the goroutine that caused the change,
// so SIGNED_IN has been delivered by the time SignInWithPassword returns.
//
// # Settings Table
//
// [PostgRESTSettings] reads and writes the settings table at {provider.url}/rest/v1/settings
// using the signed-in user's client from an [HTTPClientSource].
//
// # Detections Backend
//
// [APIService] makes raw requests to the detections backend and returns [APIResponse] values with the body
// decoded opportunistically as JSON.
//
// # Error Handling
//
// Provider failures are [ProviderError] values: Error() is the provider's message verbatim and
// errors.Is matches the classification:
//   - [shared.ErrInvalidCredentials] : wrong email or password
//   - [shared.ErrProviderRejected] : any other rejection by the identity provider
//   - [shared.ErrNetworkFailure] : the request never got an answer
//   - [shared.ErrNotAuthenticated] : the settings table refused the caller
//   - [shared.ErrRequestRejected] : the settings table refused the request
package services
