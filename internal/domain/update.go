package domain

import (
	"errors"
	"fmt"
)

// UpdateFor builds the Update for one poll outcome. Rate limiting is not a
// connection error: it becomes a feed pause and leaves the pipeline's
// status alone.
func UpdateFor(key PipelineKey, st Status, err error) Update {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return Update{
			Key:         key,
			PauseUntil:  rl.ResumeAt,
			PauseReason: fmt.Sprintf("Rate limited, polling paused until %s", rl.ResumeAt.Local().Format("15:04:05")),
		}
	}
	if err != nil {
		return Update{Key: key, Err: err}
	}
	return Update{Key: key, Status: st}
}
