package grading

import "fmt"

// Stage identifies a pipeline checkpoint.
type Stage string

const (
	StageIntake   Stage = "intake"
	StagePresence Stage = "presence_verify"
	StageBending  Stage = "bending"
	StageDefects  Stage = "defect_scan"
	StageScore    Stage = "score"
)

// Failure kinds, used to classify gate failures beyond the HTTP status.
const (
	KindInvalidFormat        = "invalid_format"
	KindInvalidImage         = "invalid_image"
	KindSizeTooSmall         = "size_too_small"
	KindBrightnessOutOfRange = "brightness_out_of_range"
	KindPresenceFailed       = "presence_verification_failed"
	KindModelUnavailable     = "model_unavailable"
)

// StageFailure is the terminal result of a pipeline run that did not pass a
// gate. Detail is user visible and embeds the measured value and the
// threshold it violated.
type StageFailure struct {
	Stage  Stage
	Kind   string
	Status int
	Detail string
}

func (f *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %s", f.Stage, f.Detail)
}

func newFailure(stage Stage, kind string, status int, format string, args ...interface{}) *StageFailure {
	return &StageFailure{
		Stage:  stage,
		Kind:   kind,
		Status: status,
		Detail: fmt.Sprintf(format, args...),
	}
}
