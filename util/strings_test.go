package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitNonEmpty(" a, ,b ", ","))
	assert.Equal(t, []string{"app"}, SplitNonEmpty("app", ","))
	assert.Nil(t, SplitNonEmpty("", ","))
	assert.Nil(t, SplitNonEmpty(" , ", ","))
}
