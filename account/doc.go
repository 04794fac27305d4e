// Package account holds the persistent identity records shared by the engine and
// the relational storage layer: users, password credentials, and third-party
// identity links.
//
// Records reference each other by string ID only. A [User] never embeds its
// [OAuthLink] values and a link never embeds its user; callers join explicitly
// through the store.
//
// # What this package must NOT do
//
//   - Import linkauth, storage, or any transport package.
//   - Contain authentication decisions; those belong to the Engine.
package account
