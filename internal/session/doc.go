// Package session owns the client-side session and the authorization gate in front of protected views.
//
// [Store] holds the current identity and a loading flag. It is created once by the command runner,
// subscribes to the identity provider with [Store.Start] and releases the subscription with [Store.Close].
// Views observe it through [Store.Watch].
//
// [Gateway] performs login, logout and signup and records the outcome in the store. Errors come back
// from the provider unchanged and are classified with errors.Is against the sentinels in shared.
//
// [Guard] is the redirect policy, a state machine over {Loading, Unauthenticated, Authenticated}:
//
//	Loading          -> Suspend (render nothing)
//	Unauthenticated  -> Redirect to /login
//	Authenticated    -> Render
//
// [Guard.Transitions] re-evaluates on every store change, so signing out while a protected view is open
// forces a redirect without waiting for the next navigation.
package session
