package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const (
	// MaxAliasLength bounds the alias in runes
	MaxAliasLength = 40
)

var (
	platformIDPattern = regexp.MustCompile(`^[a-z][a-z0-9]{1,15}_[A-Za-z0-9]{1,48}$`)
	agentIDPattern    = regexp.MustCompile(`^agent_[A-Za-z0-9]{1,48}$`)
)

// ValidPlatformID reports whether id looks like "<platform>_<body>"
func ValidPlatformID(id string) bool {
	return platformIDPattern.MatchString(id)
}

// ValidAgentID reports whether id looks like "agent_<body>"
func ValidAgentID(id string) bool {
	return agentIDPattern.MatchString(id)
}

// validateBinding checks the wallet and both identifiers, reporting every problem at once
func validateBinding(verifier ports.WalletVerifier, wallet, platformID, agentID string) error {
	var problems []string
	if !verifier.ValidAddress(wallet) {
		problems = append(problems, "wallet must be a 0x-prefixed 20 byte hex address")
	}
	if !ValidPlatformID(platformID) {
		problems = append(problems, "platformId must look like <platform>_<alphanumeric id>")
	}
	if !ValidAgentID(agentID) {
		problems = append(problems, "agentId must look like agent_<alphanumeric id>")
	}
	if len(problems) > 0 {
		return core.Errorf(core.ErrValidation, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// SanitizeAlias trims the alias and truncates it to MaxAliasLength runes
func SanitizeAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	if utf8.RuneCountInString(alias) <= MaxAliasLength {
		return alias
	}
	return strings.TrimSpace(string([]rune(alias)[:MaxAliasLength]))
}

func walletKey(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}
