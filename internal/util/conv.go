package util

import (
	"strconv"
)

// ParseUintOrZero parses an id path/query parameter, returning 0 on failure.
func ParseUintOrZero(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}
