// Package classifier implements the Command Risk Classifier (C3): a pure,
// deterministic, side-effect-free function from a raw shell string to
// {Safe, Unknown, Dangerous}. See spec §4.3 for the full algorithm; this
// file is the orchestration, rules.go holds the enumerated sets and
// per-command validators, tokenize.go the quote-aware splitter.
package classifier

import "strings"

// Risk is the classifier's verdict for one command string.
type Risk int

const (
	Safe Risk = iota
	Unknown
	Dangerous
)

const maxCommandLen = 2000

// Classify is the pure entry point. Deterministic, no I/O, no global state
// mutation — safe to call concurrently (invariant §8.7).
func Classify(raw string) Risk {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(raw) > maxCommandLen {
		return Unknown
	}

	if containsDangerousConstruct(raw) {
		return Unknown
	}

	subCommands, ok := splitTopLevel(raw)
	if !ok {
		return Unknown // unbalanced quotes
	}
	if len(subCommands) == 0 {
		return Unknown
	}

	sawDangerous := false
	for _, sub := range subCommands {
		switch classifyOne(sub) {
		case Unknown:
			return Unknown
		case Dangerous:
			sawDangerous = true
		}
	}
	if sawDangerous {
		return Dangerous
	}
	return Safe
}

// classifyOne tokenizes and classifies a single sub-command (steps 4-6).
func classifyOne(sub string) Risk {
	tokens, ok := tokenize(sub)
	if !ok || len(tokens) == 0 {
		return Unknown
	}

	base, ok := baseName(tokens[0])
	if !ok {
		return Unknown // relative path prefix rejected
	}

	if KnownDangerous[base] || destructiveArgs(base, tokens[1:]) {
		return Dangerous
	}

	switch {
	case UnconditionallySafe[base]:
		return Safe
	case ConditionallySafe[base] != nil:
		if !ConditionallySafe[base](tokens[1:]) {
			// Tie-break: validator false on a known-conditional command -> Unknown, not Dangerous.
			return Unknown
		}
		return Safe
	default:
		return Unknown
	}
}

// baseName strips a path prefix. An absolute path (/usr/bin/ls) is reduced
// to its last element; explicitly relative (./, ../) or other slash-containing
// invocations are rejected outright (return ok=false) since the classifier
// cannot vouch for an arbitrary on-disk binary.
func baseName(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	if strings.HasPrefix(token, "./") || strings.HasPrefix(token, "../") {
		return "", false
	}
	if strings.Contains(token, "/") {
		if strings.HasPrefix(token, "/") {
			parts := strings.Split(token, "/")
			return parts[len(parts)-1], true
		}
		return "", false
	}
	return token, true
}
