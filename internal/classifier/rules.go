package classifier

import "strings"

// containsDangerousConstruct implements step 2 of §4.3: command
// substitution, variable expansion, redirection, here-doc, background
// execution, and subshells are rejected outright (Unknown) before any
// tokenization happens. This scan is intentionally quote-blind: a
// dangerous-looking construct inside quotes is still rejected, erring
// toward Unknown rather than trying to fully re-implement shell quoting
// semantics twice.
func containsDangerousConstruct(raw string) bool {
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' {
			i++ // skip the escaped character
			continue
		}
		switch c {
		case '$', '`', '>', '<', '(', ')':
			return true
		case '&':
			if i+1 < len(runes) && runes[i+1] == '&' {
				i++ // && is a separator, not background
				continue
			}
			return true
		}
	}
	return false
}

// UnconditionallySafe commands never require a validator: they are
// read-only regardless of arguments.
var UnconditionallySafe = map[string]bool{
	"ls": true, "pwd": true, "cat": true, "head": true, "tail": true,
	"whoami": true, "date": true, "uname": true, "wc": true, "true": true,
	"false": true, "echo": true, "env": true, "printenv": true, "which": true,
	"type": true, "file": true, "stat": true, "diff": true, "tree": true,
	"basename": true, "dirname": true, "realpath": true,
}

// gitSafeSubcommands are the only git subcommands considered read-only.
var gitSafeSubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true, "cat-file": true,
}

// versionFlagTools is the fixed list of "<tool> --version" invocations
// allowed regardless of the tool's other conditional rules.
var versionFlagTools = map[string]bool{
	"git": true, "node": true, "npm": true, "go": true, "python": true,
	"python3": true, "ruby": true, "java": true, "docker": true, "rg": true,
	"ripgrep": true, "curl": true, "jq": true,
}

// ConditionallySafe maps a base command to a validator over its remaining
// arguments. The validator returns true when this specific invocation is
// safe; false triggers the Unknown tie-break (never Dangerous).
var ConditionallySafe = map[string]func(args []string) bool{
	"git": func(args []string) bool {
		if len(args) == 0 {
			return false
		}
		if versionOnly(args) {
			return true
		}
		for _, a := range args {
			// config-override flags can change git's behavior arbitrarily.
			if a == "-c" || strings.HasPrefix(a, "--config") {
				return false
			}
		}
		return gitSafeSubcommands[args[0]]
	},
	"find": func(args []string) bool {
		for _, a := range args {
			if a == "-exec" || a == "-delete" || a == "-execdir" || a == "-fprintf" {
				return false
			}
		}
		return true
	},
	"sed": func(args []string) bool {
		// Only "-n '<addr>p'" address-print forms are considered safe.
		if len(args) < 2 || args[0] != "-n" {
			return versionOnly(args) && versionFlagTools["sed"]
		}
		return isPrintAddressExpr(args[1])
	},
	"rg": func(args []string) bool { return true },
	"ripgrep": func(args []string) bool { return true },
	"base64": func(args []string) bool { return true },
	"xxd": func(args []string) bool { return true },
}

func init() {
	// Any tool in versionFlagTools gets a "--version" validator registered
	// if it doesn't already have a richer one above.
	for name := range versionFlagTools {
		if _, exists := ConditionallySafe[name]; !exists {
			ConditionallySafe[name] = versionOnly
		}
	}
}

func versionOnly(args []string) bool {
	return len(args) == 1 && (args[0] == "--version" || args[0] == "-v" || args[0] == "-V")
}

// isPrintAddressExpr matches sed's "<addr>p" forms, e.g. "5p", "1,10p", "$p".
func isPrintAddressExpr(expr string) bool {
	expr = strings.TrimSpace(expr)
	if !strings.HasSuffix(expr, "p") {
		return false
	}
	addr := strings.TrimSuffix(expr, "p")
	if addr == "" || addr == "$" {
		return true
	}
	for _, part := range strings.Split(addr, ",") {
		part = strings.TrimSpace(part)
		if part == "$" {
			continue
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
		if part == "" {
			return false
		}
	}
	return true
}

// KnownDangerous commands are dangerous regardless of their arguments.
var KnownDangerous = map[string]bool{
	"rm": true, "sudo": true, "su": true, "dd": true, "mkfs": true,
	"shutdown": true, "reboot": true, "halt": true, "poweroff": true,
	"kill": true, "killall": true, "pkill": true, "chmod": true,
	"chown": true, "mv": true, "format": true, "fdisk": true,
}

// destructivePatterns escalate an otherwise-conditionally-safe command to
// Dangerous when its joined arguments contain one of these substrings.
// Folded in from the permission layer's destructive-bash detection
// (teacher: internal/config/permission.go IsDestructiveCommand).
var destructivePatterns = []string{
	"push --force", "push -f", "reset --hard", "clean -fd", "checkout -- .",
	"DROP TABLE", "DROP DATABASE", "TRUNCATE",
}

func destructiveArgs(base string, args []string) bool {
	joined := base + " " + strings.Join(args, " ")
	for _, p := range destructivePatterns {
		if strings.Contains(joined, p) {
			return true
		}
	}
	return false
}
