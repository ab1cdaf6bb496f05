// Command aq is the terminal-embedded AI coding agent: typed directly into
// an interactive shell session via an "@ " trigger (C10), or driven
// non-interactively with a single message for scripting and pipelines.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aq-cli/aq/internal/agentdef"
	"github.com/aq-cli/aq/internal/config"
	"github.com/aq-cli/aq/internal/hooks"
	"github.com/aq-cli/aq/internal/log"
	"github.com/aq-cli/aq/internal/provider"
	"github.com/aq-cli/aq/internal/skill"
	"github.com/aq-cli/aq/internal/task"
	"github.com/aq-cli/aq/internal/tool"
	"github.com/google/uuid"

	agentexec "github.com/aq-cli/aq/internal/agent"

	// Self-register the four backends behind provider.GetProvider.
	_ "github.com/aq-cli/aq/internal/provider/anthropic"
	_ "github.com/aq-cli/aq/internal/provider/google"
	_ "github.com/aq-cli/aq/internal/provider/moonshot"
	_ "github.com/aq-cli/aq/internal/provider/openai"
)

var version = "0.1.0"

func init() {
	_ = godotenv.Load()
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var promptFlag string

var rootCmd = &cobra.Command{
	Use:   "aq [message]",
	Short: "aq - AI coding agent embedded in your terminal",
	Long: `aq is an AI coding agent that lives inside your shell session.

Non-interactive mode:
  aq "your message"        Send a message directly
  echo "message" | aq      Send a message via stdin
  aq -p "prompt"           Use a custom prompt

Interactive mode:
  aq                       Attach to the current shell; type "@ " to
                           start an agent turn without leaving your prompt.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message := getInputMessage(args)
		if message != "" {
			return runNonInteractive(message)
		}
		return runInteractive()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Custom prompt to send")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(helpCmd)
	rootCmd.SetHelpCommand(helpCmd)
}

// getInputMessage resolves non-interactive input from the -p flag, the
// positional args, or a piped stdin, in that priority order.
func getInputMessage(args []string) string {
	if promptFlag != "" {
		return promptFlag
	}
	if len(args) > 0 {
		return strings.Join(args, " ")
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aq version %s\n", version)
	},
}

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show help information",
	Run: func(cmd *cobra.Command, args []string) {
		printHelp()
	},
}

func printHelp() {
	fmt.Println(`
aq - AI coding agent embedded in your terminal

Usage:
  aq [message]              Non-interactive mode with message
  aq                        Attach to the current shell
  aq [command]              Run a command

Non-interactive Mode:
  aq "your message"         Send a message directly
  echo "message" | aq       Send a message via stdin
  aq -p "prompt"            Use a custom prompt

Interactive Mode:
  @ <task>     Enter/ Start an agent turn
  @ <Backspace>  Cancel the trigger
  Ctrl+C       Abort the current turn / capture
  Ctrl+V       Paste (long pastes collapse to a placeholder)

Commands:
  version      Print the version number
  help         Show this help message
`)
}

// resolveProvider picks the provider+model an aq invocation should run
// with: the store's current selection, falling back to the first
// provider whose credentials are present in the environment.
func resolveProvider(ctx context.Context) (provider.LLMProvider, string, error) {
	store, err := provider.NewStore()
	if err != nil {
		return nil, "", fmt.Errorf("load provider store: %w", err)
	}

	if current := store.GetCurrentModel(); current != nil {
		p, err := provider.GetProvider(ctx, current.Provider, current.AuthMethod)
		if err == nil {
			return p, current.ModelID, nil
		}
	}

	for name, conn := range store.GetConnections() {
		p, err := provider.GetProvider(ctx, provider.Provider(name), conn.AuthMethod)
		if err != nil {
			continue
		}
		return p, defaultModel(provider.Provider(name)), nil
	}

	for _, meta := range provider.GetReadyProviders() {
		p, err := provider.GetProvider(ctx, meta.Provider, meta.AuthMethod)
		if err != nil {
			continue
		}
		return p, defaultModel(meta.Provider), nil
	}

	return nil, "", fmt.Errorf("no provider connected; set one of the provider API key env vars")
}

func defaultModel(p provider.Provider) string {
	switch p {
	case provider.ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case provider.ProviderOpenAI:
		return "gpt-4o"
	case provider.ProviderGoogle:
		return "gemini-2.0-flash"
	case provider.ProviderMoonshot:
		return "moonshot-v1-32k"
	default:
		return "claude-sonnet-4-20250514"
	}
}

// buildExecutor wires the Task tool's subagent executor (C9 reused per
// spawn) so Task/TaskOutput/TaskKill work in both run modes.
func buildExecutor(p provider.LLMProvider, model string, reg *tool.Registry) *agentexec.Executor {
	agentdef.DefaultRegistry.InitStores(cwd())
	_ = skill.Initialize(cwd())

	e := &agentexec.Executor{
		Provider: p,
		Model:    model,
		Tools:    reg,
		Agents:   agentdef.DefaultRegistry,
		Tasks:    task.NewManager(),
	}
	tool.SetAgentExecutor(e)
	return e
}

func cwd() string {
	d, err := os.Getwd()
	if err != nil {
		return "."
	}
	return d
}

func isGitRepo(dir string) bool {
	_, err := os.Stat(dir + "/.git")
	return err == nil
}

// newHooksEngine loads project/user hook settings for the current
// directory. Returns nil (disabled) rather than failing the run when
// settings can't be loaded, since hooks are an enrichment, not a
// requirement, of any given session.
func newHooksEngine(sessionID string) *hooks.Engine {
	settings, err := config.Load()
	if err != nil {
		return nil
	}
	return hooks.NewEngine(settings, sessionID, cwd(), "")
}

func newSessionID() string { return uuid.NewString() }
