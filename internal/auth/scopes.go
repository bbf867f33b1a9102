package auth

// Scopes granted to a signed-in participant.
const (
	ScopeExercisesWrite = "exercises:write"
	ScopeExercisesRead  = "exercises:read"
)

// DefaultScopes are issued with every session token.
var DefaultScopes = []string{ScopeExercisesRead, ScopeExercisesWrite}
