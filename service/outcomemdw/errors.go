package outcomemdw

import "errors"

var (
	ErrOutcomeNotFound          = errors.New("rewrite outcome not found")
	ErrOutcomeRecordingDisabled = errors.New("rewrite outcome recording is disabled")
)
