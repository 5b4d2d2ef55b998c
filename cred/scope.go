package cred

import "strings"

// allows reports whether a context scope may access a credential scope:
// equal, or a path-component prefix of it (reflexive, transitive
// hierarchy — "org:acme" reaches "org:acme/team:eng/service:api").
func (ctxScope Scope) allows(credScope Scope) bool {
	if ctxScope == credScope {
		return true
	}
	if ctxScope == "" {
		return false
	}
	prefix := string(ctxScope) + "/"
	return strings.HasPrefix(string(credScope), prefix)
}
