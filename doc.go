// Package auth implements the session lifecycle of the business console:
// one process wide session resolved from an external identity provider and
// an application profile store, plus role based authorization.
//
// Session lifecycle:
//   - SessionStore holds the session and publishes immutable snapshots to
//     subscribers. Controller is its only writer and runs one mutation at a
//     time.
//   - States move initializing -> unauthenticated | resolving -> authenticated.
//     A profile failure keeps the store in resolving with the error recorded;
//     only teardown (sign out, provider invalidation, disabled account) may
//     force resolving back to unauthenticated.
//   - An identity without a profile gets a viewer profile before the session
//     is published.
//
// Dual writes:
//   - UpdateProfile and ChangeEmail write the provider first and the profile
//     store second. A failed profile write reverts the provider change; a
//     failed revert surfaces ErrConsistency.
//
// Activity sinks:
//   - ActivitySink receives login, sign out, registration, profile and state
//     change events. Sinks run best-effort (errors are logged).
//
// The idle subpackage signs out inactive sessions, RouteGuard decides what
// protected views render, and the console package wires both into fiber.
package auth
