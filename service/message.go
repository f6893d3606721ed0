package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/questproof/core"
)

const messageTitle = "questproof sign-in request"

// RenderChallengeMessage produces the text the wallet signs.
// The output depends only on the challenge fields so it can be audited by the signer.
func RenderChallengeMessage(c *core.Challenge) string {
	alias := c.Alias
	if alias == "" {
		alias = "(none)"
	}

	var b strings.Builder
	b.WriteString(messageTitle)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Wallet: %s\n", c.Wallet)
	fmt.Fprintf(&b, "Platform ID: %s\n", c.PlatformID)
	fmt.Fprintf(&b, "Agent ID: %s\n", c.AgentID)
	fmt.Fprintf(&b, "Alias: %s\n", alias)
	fmt.Fprintf(&b, "Nonce: %s\n", c.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", c.IssuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Expires At: %s", c.ExpiresAt.UTC().Format(time.RFC3339))
	return b.String()
}
