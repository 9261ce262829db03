package service

import "context"

// DefaultSession owns the undo history of callers without a session.
const DefaultSession = "default"

type sessionKey struct{}

// WithSession scopes undo history to sessionID for the rest of the request.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultSession
}
