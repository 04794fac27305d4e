// Package stores provides Redis-backed, short-lived records for the OAuth
// authorization round trip.
//
// # Design
//
// A state record is written once with a TTL and consumed with a single GETDEL,
// so two concurrent callbacks presenting the same state can never both observe
// it. Records are JSON so that they stay readable with redis-cli during an
// incident.
//
// # Architecture boundaries
//
// This package owns persistence of state records and the binding verdict. It
// does NOT talk to identity providers, issue tokens or resolve accounts.
package stores
