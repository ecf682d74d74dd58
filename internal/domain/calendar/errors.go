package calendar

import "errors"

var (
	ErrNotFound         = errors.New("rule not found")
	ErrDuplicateRule    = errors.New("a rule for this doctor, branch and day already exists")
	ErrUnknownReference = errors.New("doctor or branch does not exist")
	ErrInvalidRule      = errors.New("invalid rule")
)
