package aggregate

import "errors"

var (
	ErrProjectNotFound = errors.New("main project not found")
	ErrInconsistent    = errors.New("aggregate is inconsistent")
)
