package middleware

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ProjectRateLimiter throttles requests per project so one noisy tenant
// cannot starve the AI provider quota for everyone else.
type ProjectRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	limit rate.Limit
	burst int
}

// NewProjectRateLimiter creates a limiter allowing rps requests per second
// per project with the given burst.
func NewProjectRateLimiter(rps float64, burst int) *ProjectRateLimiter {
	return &ProjectRateLimiter{
		limits: make(map[string]*rate.Limiter),
		limit:  rate.Limit(rps),
		burst:  burst,
	}
}

func (rl *ProjectRateLimiter) getLimiter(projectID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[projectID]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limits[projectID] = limiter
	return limiter
}

// Allow reports whether a request for the project may proceed now.
func (rl *ProjectRateLimiter) Allow(projectID string) bool {
	return rl.getLimiter(projectID).Allow()
}

// Wait blocks until a request for the project may proceed or ctx is done.
func (rl *ProjectRateLimiter) Wait(ctx context.Context, projectID string) error {
	return rl.getLimiter(projectID).Wait(ctx)
}
