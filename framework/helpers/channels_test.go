package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonBlockingSend(t *testing.T) {
	ch := make(chan int, 1)
	assert.True(t, NonBlockingSend(ch, 1))
	assert.False(t, NonBlockingSend(ch, 2))
	assert.Equal(t, 1, <-ch)
}
