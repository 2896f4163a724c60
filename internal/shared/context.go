package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Flash queues a flash message on the request session, if any.
func Flash(ctx context.Context, kind, message string) {
	if sess := SessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
}

// PopFlashes drains the flash queue of the request session, if any.
func PopFlashes(ctx context.Context) []FlashMessage {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.PopFlashes()
	}
	return nil
}
