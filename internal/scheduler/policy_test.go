package scheduler

import (
	"testing"

	"github.com/aq-cli/aq/internal/config"
	"github.com/aq-cli/aq/internal/message"
)

func TestRulePolicyDeny(t *testing.T) {
	settings := config.NewSettings()
	settings.Permissions.Deny = []string{"Bash(rm:*)"}
	policy := RulePolicy(settings, config.NewSessionPermissions())

	c := &Call{Name: "Bash", RawArgs: `{"command":"rm -rf /tmp/x"}`}
	if got := policy(c, message.ConfirmationDetails{}); got != message.PolicyDeny {
		t.Fatalf("policy = %v, want PolicyDeny", got)
	}
}

func TestRulePolicyAllow(t *testing.T) {
	settings := config.NewSettings()
	settings.Permissions.Allow = []string{"Bash(git:*)"}
	policy := RulePolicy(settings, config.NewSessionPermissions())

	c := &Call{Name: "Bash", RawArgs: `{"command":"git status"}`}
	if got := policy(c, message.ConfirmationDetails{}); got != message.PolicyAuto {
		t.Fatalf("policy = %v, want PolicyAuto", got)
	}
}

func TestRulePolicyDestructiveAlwaysAsks(t *testing.T) {
	settings := config.NewSettings()
	settings.Permissions.Allow = []string{"Bash(git:*)"}
	policy := RulePolicy(settings, config.NewSessionPermissions())

	c := &Call{Name: "Bash", RawArgs: `{"command":"git push --force"}`}
	if got := policy(c, message.ConfirmationDetails{}); got != message.PolicyAskUser {
		t.Fatalf("policy = %v, want PolicyAskUser for a destructive command despite an Allow rule", got)
	}
}

func TestRulePolicyDefaultAsksForWriteTools(t *testing.T) {
	settings := config.NewSettings()
	policy := RulePolicy(settings, config.NewSessionPermissions())

	c := &Call{Name: "Write", RawArgs: `{"file_path":"/tmp/x"}`}
	if got := policy(c, message.ConfirmationDetails{}); got != message.PolicyAskUser {
		t.Fatalf("policy = %v, want PolicyAskUser by default for a non-read-only tool", got)
	}
}
