package pdfquiz

import "context"

// ResultSink stores submitted attempts
type ResultSink interface {
	SaveResult(ctx context.Context, answer QuizAnswer) error
}

// ResultSinkFunc adapts a function to the ResultSink interface
type ResultSinkFunc func(ctx context.Context, answer QuizAnswer) error

// SaveResult calls f(ctx, answer)
func (f ResultSinkFunc) SaveResult(ctx context.Context, answer QuizAnswer) error {
	return f(ctx, answer)
}

// Identity is the authenticated user taking a quiz. The zero value means anonymous.
type Identity struct {
	UserID string
}

// Anonymous reports whether no user is attached
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}
