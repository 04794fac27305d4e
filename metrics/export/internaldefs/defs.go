package internaldefs

import (
	"github.com/MrEthical07/linkauth"
)

type CounterDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(linkauth.HistogramBounds) + 1

var CounterDefs = []CounterDef{
	{ID: linkauth.MetricLoginSuccess, Name: "linkauth_login_success_total", Help: "Successful password logins."},
	{ID: linkauth.MetricLoginFailure, Name: "linkauth_login_failure_total", Help: "Failed password logins."},
	{ID: linkauth.MetricLoginRateLimited, Name: "linkauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: linkauth.MetricRefreshSuccess, Name: "linkauth_refresh_success_total", Help: "Access tokens reissued from a refresh token."},
	{ID: linkauth.MetricRefreshFailure, Name: "linkauth_refresh_failure_total", Help: "Refresh attempts with an invalid or expired token."},
	{ID: linkauth.MetricRefreshMismatch, Name: "linkauth_refresh_mismatch_total", Help: "Refresh tokens not matching a stored session."},
	{ID: linkauth.MetricRefreshRateLimited, Name: "linkauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: linkauth.MetricSessionCreated, Name: "linkauth_session_created_total", Help: "Device sessions created."},
	{ID: linkauth.MetricLogout, Name: "linkauth_logout_total", Help: "Single-session logouts."},
	{ID: linkauth.MetricLogoutAll, Name: "linkauth_logout_all_total", Help: "Logout-all operations."},
	{ID: linkauth.MetricSignupSuccess, Name: "linkauth_signup_success_total", Help: "Password signups."},
	{ID: linkauth.MetricSignupDuplicate, Name: "linkauth_signup_duplicate_total", Help: "Signups rejected for a registered email."},
	{ID: linkauth.MetricAccountDeleted, Name: "linkauth_account_deleted_total", Help: "Deleted accounts."},
	{ID: linkauth.MetricAccountDisabled, Name: "linkauth_account_disabled_total", Help: "Disabled accounts."},
	{ID: linkauth.MetricOAuthBegin, Name: "linkauth_oauth_begin_total", Help: "OAuth flows started."},
	{ID: linkauth.MetricOAuthLogin, Name: "linkauth_oauth_login_total", Help: "OAuth callbacks resolved to a login."},
	{ID: linkauth.MetricOAuthSignup, Name: "linkauth_oauth_signup_total", Help: "OAuth callbacks that created an account."},
	{ID: linkauth.MetricOAuthConflict, Name: "linkauth_oauth_conflict_total", Help: "OAuth callbacks rejected for an email owned by another account."},
	{ID: linkauth.MetricOAuthStateInvalid, Name: "linkauth_oauth_state_invalid_total", Help: "Unknown, expired or reused OAuth states."},
	{ID: linkauth.MetricOAuthSessionMismatch, Name: "linkauth_oauth_session_mismatch_total", Help: "Bound OAuth states redeemed by another session."},
	{ID: linkauth.MetricOAuthProviderFailure, Name: "linkauth_oauth_provider_failure_total", Help: "Failed code exchanges or profile fetches."},
	{ID: linkauth.MetricLinkCreated, Name: "linkauth_link_created_total", Help: "Provider identities linked."},
	{ID: linkauth.MetricLinkRejected, Name: "linkauth_link_rejected_total", Help: "Rejected link attempts."},
	{ID: linkauth.MetricUnlinkSuccess, Name: "linkauth_unlink_success_total", Help: "Provider identities unlinked."},
	{ID: linkauth.MetricUnlinkRejected, Name: "linkauth_unlink_rejected_total", Help: "Rejected unlink attempts."},
}

var HistogramDefs = []HistogramDef{
	{ID: linkauth.MetricAuthenticateLatency, Name: "linkauth_authenticate_latency_seconds", Help: "Access token verification latency."},
	{ID: linkauth.MetricOAuthCallbackLatency, Name: "linkauth_oauth_callback_latency_seconds", Help: "OAuth callback latency including the provider round trip."},
}

// HistogramBounds are the Prometheus "le" labels matching linkauth.HistogramBounds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const AuditDroppedName = "linkauth_audit_dropped_total"
const AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
