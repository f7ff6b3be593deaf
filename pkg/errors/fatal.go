package errors

import (
	"fmt"
	"os"
)

// FatalHandler is invoked by Fatal instead of terminating the process,
// letting tests observe the fatal path without exiting.
var FatalHandler func(err *AppError)

// Fatal reports an unrecoverable error and terminates the process.
//
// This is the fatal-termination path referenced by programming errors,
// resource exhaustion, and executor failures: none of these are recoverable
// across a task boundary, so there is no error return to propagate them
// through.
func Fatal(err *AppError) {
	if FatalHandler != nil {
		FatalHandler(err)
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

// FatalProgrammingError reports a programming error (§7.1) and terminates.
func FatalProgrammingError(message string, err error) {
	Fatal(Wrap(CodeProgrammingError, message, err))
}

// FatalResourceExhaustion reports resource exhaustion (§7.2) and terminates.
func FatalResourceExhaustion(message string, size int) {
	Fatal(Wrap(CodeResourceExhaustion, fmt.Sprintf("%s (size=%d)", message, size), nil))
}

// FatalExecutorFailure reports an executor failure (§7.3) and terminates.
func FatalExecutorFailure(message string, err error) {
	Fatal(Wrap(CodeExecutorFailure, message, err))
}
