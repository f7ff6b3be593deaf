package taskapi

import (
	"fmt"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// unknownTaskKindError reports SpawnKind called with a label never
// passed to RegisterTaskKind.
func unknownTaskKindError(label string) error {
	return apperrors.New(apperrors.CodeProgrammingError,
		fmt.Sprintf("unregistered task kind %q", label))
}
