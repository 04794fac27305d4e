// Package identity talks to third-party OAuth2 identity providers.
//
// The set of providers is closed: google, github, kakao and naver. Each has a
// typed extractor that turns the provider's user-info JSON into a [Profile];
// anything else is rejected with [ErrUnsupportedProvider] rather than guessed
// at.
//
// [Client] runs the Authorization Code grant through golang.org/x/oauth2.
// Authorization codes are single use, so a failed exchange is reported as
// [ErrExchangeFailed] and never retried.
package identity
