package ports

import "github.com/layer-3/bazaar/core"

// Tokenizer converts between sessions and signed session tokens
type Tokenizer interface {
	// NewSession builds a session for the account starting now.
	NewSession(accountID string, role core.Role) *core.Session
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
