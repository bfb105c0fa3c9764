package ingestion

import (
	"errors"
	"fmt"

	"fanout/internal/constants"
	"fanout/pkg/models"
)

// ErrConfiguration aborts a batch before any message is touched.
var ErrConfiguration = errors.New("pipeline configuration error")

// StageError classifies a message failure for the batch report.
type StageError struct {
	Kind  models.OutcomeKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func decodeFailed(stage string, err error) *StageError {
	return &StageError{Kind: models.OutcomeDecodeFailed, Stage: stage, Err: err}
}

func validationFailed(stage, reason string) *StageError {
	return &StageError{Kind: models.OutcomeValidationFailed, Stage: stage, Err: errors.New(reason)}
}

func sinkFailed(err error) *StageError {
	return &StageError{Kind: models.OutcomeSinkFailed, Stage: constants.StageSink, Err: err}
}

// outcomeOf maps a pipeline error to its outcome. Unclassified errors count
// as sink failures, the only stage that does I/O.
func outcomeOf(err error) models.Outcome {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return models.Failed(stageErr.Kind, stageErr.Stage, stageErr.Err.Error())
	}
	return models.Failed(models.OutcomeSinkFailed, constants.StageSink, err.Error())
}
