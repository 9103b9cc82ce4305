package uuidutil

import (
	"github.com/stretchr/testify/assert"
	"regexp"
	"testing"
)

func TestUUID(t *testing.T) {
	id := UUID()
	assert.Len(t, id, 32)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)
	assert.NotEqual(t, id, UUID())
}

func TestShortUUID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := ShortUUID()
		assert.GreaterOrEqual(t, len(id), 22)
		assert.Regexp(t, regexp.MustCompile(`^[0-9A-Za-z]+$`), id)
	}
}
