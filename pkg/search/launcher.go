package search

import (
	"errors"
)

// ErrHalted is an error indicating that the search was halted.
var ErrHalted = errors.New("search halted")
