package domain

// KeyPrefix namespaces every key this service reads or writes in the shared datastore.
var KeyPrefix = "mataresit:"

// DocumentKeyPrefix is the hash prefix covered by the search index.
func DocumentKeyPrefix() string { return KeyPrefix + "doc:" }

// Scope is the requesting identity as resolved by the upstream gateway.
type Scope struct {
	UserID string
	TeamID string
}

// IsZero reports whether no identity is attached.
func (s Scope) IsZero() bool { return s.UserID == "" && s.TeamID == "" }
