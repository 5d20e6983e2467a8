package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUintOrZero(t *testing.T) {
	assert.EqualValues(t, 42, ParseUintOrZero("42"))
	assert.Zero(t, ParseUintOrZero(""))
	assert.Zero(t, ParseUintOrZero("abc"))
	assert.Zero(t, ParseUintOrZero("-1"))
}
