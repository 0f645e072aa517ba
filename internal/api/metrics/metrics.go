// Package metrics defines and registers all custom Prometheus metrics for the
// license panel. It is the single source of truth for metric names, labels,
// and help strings. Registration happens at import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "panel"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "failure", or "blocked"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// IPBlocksTotal counts temporary blocks inserted by the throttle guard.
var IPBlocksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ip_blocks_total",
		Help:      "Total number of IP blocks created by the login throttle.",
	},
)

// OTPRequestsTotal counts forgot-password OTP sends.
var OTPRequestsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_requests_total",
		Help:      "Total number of password-reset OTP emails requested.",
	},
)

// ── Key metrics ───────────────────────────────────────────────────────────────

// KeysIssuedTotal counts successfully issued keys.
// Label:
//   - key_type: "random", "name", or "custom"
var KeysIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "keys_issued_total",
		Help:      "Total number of license keys issued, by generation scheme.",
	},
	[]string{"key_type"},
)

// KeyIssueErrorsTotal counts rejected issuance requests.
// Label:
//   - reason: "insufficient_balance", "server_off", "exhausted", "invalid"
var KeyIssueErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "key_issue_errors_total",
		Help:      "Total number of key issuance requests rejected, by reason.",
	},
	[]string{"reason"},
)

// ConnectsTotal counts downstream connect calls by outcome.
// Label:
//   - result: "accepted" or "rejected"
var ConnectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connects_total",
		Help:      "Total number of downstream connect requests, by result.",
	},
	[]string{"result"},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// BalanceCreditsTotal counts administrative balance top-ups.
var BalanceCreditsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_credits_total",
		Help:      "Total number of balance top-ups applied.",
	},
)
