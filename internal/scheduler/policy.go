package scheduler

import (
	"encoding/json"

	"github.com/aq-cli/aq/internal/config"
	"github.com/aq-cli/aq/internal/message"
)

// RulePolicy builds a PolicyFunc from a settings file's Allow/Deny/Ask
// rules, layered underneath the scheduler's own PathAccess auto-approval
// (SPEC supplement "rule-based permission overrides"). Destructive-bash
// detection rides along inside Settings.CheckPermission itself, so a call
// like "rm -rf" always comes back Ask regardless of any Allow rule.
//
// A call whose rule evaluates to Ask returns message.PolicyAskUser, which
// falls through to the normal confirmation round trip exactly as a nil
// PolicyFunc would.
func RulePolicy(settings *config.Settings, session *config.SessionPermissions) PolicyFunc {
	return func(c *Call, _ message.ConfirmationDetails) message.PolicyDecision {
		var args map[string]any
		_ = json.Unmarshal([]byte(c.RawArgs), &args)

		switch settings.CheckPermission(c.Name, args, session) {
		case config.PermissionDeny:
			return message.PolicyDeny
		case config.PermissionAllow:
			return message.PolicyAuto
		default:
			return message.PolicyAskUser
		}
	}
}
