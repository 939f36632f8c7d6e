package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bcnelson/free-api/internal/domain"
)

func TestUnavailableLimiter(t *testing.T) {
	limiter := NewUnavailable(errors.New("bad url"))

	res, err := limiter.Allow(context.Background(), "apikey:any")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorContains(t, err, "bad url")
	assert.NoError(t, limiter.Close())
}
