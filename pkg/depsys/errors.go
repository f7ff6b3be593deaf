package depsys

import (
	"fmt"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// errReleaseNotDeclared reports a release of an access never declared on
// the current task (§7.1).
func errReleaseNotDeclared(addr uintptr) error {
	return apperrors.New(apperrors.CodeProgrammingError,
		fmt.Sprintf("release of undeclared access at address %#x", addr))
}

// errReleaseKindMismatch reports a release whose kind/weakness doesn't
// match the declared access (§7.1).
func errReleaseKindMismatch(addr uintptr, declared, requested AccessKind) error {
	return apperrors.New(apperrors.CodeProgrammingError,
		fmt.Sprintf("release kind mismatch at address %#x: declared %s, requested %s", addr, declared, requested))
}

// errIncompatibleReduction reports registering a reduction whose op or
// length conflicts with the currently open reduction on the same
// address (§7.1).
func errIncompatibleReduction(addr uintptr) error {
	return apperrors.New(apperrors.CodeProgrammingError,
		fmt.Sprintf("incompatible reduction op/length on address %#x", addr))
}
