// Package rate implements Redis-backed fixed-window counters for the login and
// refresh endpoints.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Key prefixes:
//   - rl:login:   failed logins per normalized email
//   - rl:refresh: refresh attempts per device session (jti)
package rate
