package auth

import "context"

type contextKey string

const subjectKey contextKey = "subject"

// Anonymous is recorded as the actor when a request carries no token.
const Anonymous = "anonymous"

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok && subject != ""
}

func ActorFromContext(ctx context.Context) string {
	if subject, ok := SubjectFromContext(ctx); ok {
		return subject
	}
	return Anonymous
}
