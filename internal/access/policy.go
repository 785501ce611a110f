package access

import (
	"strings"

	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

// Decision is the gate value consumed by the request-routing layer. ReadOnly
// means the caller should reject mutation endpoints; this evaluator does not.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	ReadOnly bool   `json:"read_only"`
	Reason   string `json:"reason"`
}

const (
	ReasonActive         = "active"
	ReasonGracePeriod    = "grace_period"
	ReasonReadOnly       = "read_only"
	ReasonLocked         = "locked"
	ReasonBillingPath    = "billing_recovery_path"
	ReasonNoSubscription = "no_subscription"
)

// lockedAllowedPrefixes keeps the billing-recovery path reachable for locked
// tenants so they can resolve their own payment problem.
var lockedAllowedPrefixes = []string{
	"/billing",
	"/login",
	"/logout",
}

// Evaluate maps a subscription record and a request path to an access
// decision. Pure and deterministic; no I/O.
func Evaluate(sub *subscriptiondomain.Subscription, path string) Decision {
	if sub == nil {
		return Decision{Allowed: true, Reason: ReasonNoSubscription}
	}

	switch sub.AccessStatus {
	case subscriptiondomain.AccessStatusLocked:
		for _, prefix := range lockedAllowedPrefixes {
			if strings.HasPrefix(path, prefix) {
				return Decision{Allowed: true, Reason: ReasonBillingPath}
			}
		}
		return Decision{Allowed: false, Reason: ReasonLocked}
	case subscriptiondomain.AccessStatusGracePeriod:
		return Decision{Allowed: true, Reason: ReasonGracePeriod}
	case subscriptiondomain.AccessStatusReadOnly:
		return Decision{Allowed: true, ReadOnly: true, Reason: ReasonReadOnly}
	default:
		return Decision{Allowed: true, Reason: ReasonActive}
	}
}
