package ports

import "github.com/layer-3/questproof/core"

// Tokenizer converts between sessions and bearer tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	// TokenToSessionID checks the token's integrity and returns the session id it names
	TokenToSessionID(token string) (string, error)
}
