package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited spaces calls to the wrapped generator so a batch never exceeds the
// provider's per-minute quota.
type Limited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewLimited returns next unchanged when perMinute is not positive.
func NewLimited(next Generator, perMinute int) Generator {
	if perMinute <= 0 {
		return next
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Generate(ctx, prompt)
}
