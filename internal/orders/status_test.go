package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusNew, StatusShipped))
	assert.True(t, CanTransition(StatusNew, StatusCancelled))
	assert.True(t, CanTransition(StatusShipped, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusNew))
	assert.False(t, CanTransition(StatusCancelled, StatusShipped))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusCompleted))
	assert.False(t, ValidStatus(Status("paid")))
}
