// Package middleware exposes HTTP middleware that authenticates requests
// against a linkauth.Engine.
//
// # Guards
//
//   - [RequireAccess] verifies the bearer access token statelessly and stores
//     the [linkauth.Principal] in the request context.
//   - [RequireSession] additionally requires the refresh-token cookie to name a
//     live session of that same principal. Used by endpoints that act on the
//     caller's current device session, such as linking.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject.
package middleware
