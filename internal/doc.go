// Package internal contains helpers that are private to linkauth, such as
// opaque random token generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - httpapi: chi router and JSON handlers for the auth endpoints
//   - rate: Redis-backed fixed-window rate limiting
//   - stores: short-lived Redis records (OAuth state)
package internal
