package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aq-cli/aq/internal/agent"
	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/config"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/providerstats"
	"github.com/aq-cli/aq/internal/scheduler"
	"github.com/aq-cli/aq/internal/system"
	"github.com/aq-cli/aq/internal/tool"
)

// runNonInteractive drives a single agent turn to completion and prints the
// assistant's streamed content to stdout, for scripting/pipeline use. There
// is no one present to answer a confirmation or question prompt, so tool
// calls run under an auto-approve policy and any AskUserQuestion is
// answered as cancelled rather than hanging.
func runNonInteractive(userMessage string) error {
	ctx := context.Background()

	p, model, err := resolveProvider(ctx)
	if err != nil {
		return err
	}

	reg := buildToolRegistry()
	buildExecutor(p, model, reg)

	dir := cwd()
	sys := system.System{
		Provider: p.Name(),
		Model:    model,
		Cwd:      dir,
		IsGit:    isGitRepo(dir),
		Tools:    reg.Names(),
		Hooks:    newHooksEngine(newSessionID()),
	}

	b := bus.New()
	l := agent.New(p, model, reg, b, approval.NewPathTracker())
	defer l.Destroy()

	settings, err := config.Load()
	if err != nil {
		settings = config.Default()
	}
	rules := scheduler.RulePolicy(settings, config.NewSessionPermissions())
	l.Scheduler.Policy = func(c *scheduler.Call, details message.ConfirmationDetails) message.PolicyDecision {
		// Deny rules still bind in non-interactive mode; anything that
		// would otherwise stop for a human (Ask) auto-proceeds instead,
		// since there is no one present to answer it.
		if decision := rules(c, details); decision == message.PolicyDeny {
			return decision
		}
		return message.PolicyAuto
	}
	l.Callbacks = agent.Callbacks{
		OnContent: func(text string) { fmt.Print(text) },
		OnError:   func(msg string) { fmt.Fprintln(os.Stderr, "error:", msg) },
		OnNotice:  func(msg string) { fmt.Fprintln(os.Stderr, "("+msg+")") },
	}

	b.On(bus.AskUserRequest, func(payload any) {
		req, ok := payload.(tool.AskUserRequest)
		if !ok {
			return
		}
		b.Emit(bus.AskUserResponse, tool.AskUserResponse{RequestID: req.ID, Cancelled: true})
	})

	msgs := []message.ChatMessage{
		message.NewSystem(sys.Prompt()),
		message.NewUser(userMessage),
	}
	result := l.Run(ctx, msgs, 0)
	fmt.Println()
	printUsageSummary(p.Name(), result.Usage)
	return nil
}

// printUsageSummary writes the run's token totals to stderr and folds
// them into the persisted per-provider stats file (spec §6/§7); silent on
// zero usage or a stats-file write failure, since neither should surface
// as a run failure.
func printUsageSummary(providerName string, usage message.TokensSummary) {
	if usage.Total == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "tokens: %d prompt, %d completion, %d total\n",
		usage.Prompt, usage.Completion, usage.Total)

	store, err := providerstats.NewStore()
	if err != nil {
		return
	}
	_ = store.Record(providerName, usage)
}
