package randutil

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestInt63n(t *testing.T) {
	expect := Int63n()
	actual := Int63n()
	assert.NotEqual(t, expect, actual)
	assert.GreaterOrEqual(t, actual, int64(0))
}

func TestStringN(t *testing.T) {
	expect := StringN(16)
	actual := StringN(16)
	assert.Len(t, actual, 16)
	assert.NotEqual(t, expect, actual)
}
