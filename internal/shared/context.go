package shared

import "context"

type sessionContextKey struct{}

type schoolHintContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithSchoolHint records the school detected upstream, e.g. by the
// subdomain middleware, before any membership checks have run.
func ContextWithSchoolHint(ctx context.Context, schoolID int64) context.Context {
	return context.WithValue(ctx, schoolHintContextKey{}, schoolID)
}

// SchoolHintFromContext returns the upstream-detected school ID, zero when absent.
func SchoolHintFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(schoolHintContextKey{}).(int64)
	return id
}
