package job

import "errors"

var (
	ErrInvalidScheduleExpression = errors.New("invalid schedule expression")
	ErrUnresolvedJobType         = errors.New("unresolved job type")
)
