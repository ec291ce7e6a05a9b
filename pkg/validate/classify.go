package validate

import (
	"fmt"

	"github.com/conecheck/conecheck/pkg/defaults"
)

// Expected outcomes recorded as validate_expected.
const (
	ExpectedGood      = "good"
	ExpectedIncorrect = "incorrect"
	ExpectedBroken    = "broken"
)

// Classify picks the status bucket of one service. networkErr is empty when
// the service answered; codes is the set of diagnostic codes it produced.
func Classify(networkErr string, nexceptions, nwarnings int, codes []string, noncritical func(string) bool) (status, expected string, err error) {
	switch {
	case networkErr != "":
		return defaults.StatusError, ExpectedBroken, nil
	case nexceptions == 0 && nwarnings == 0, allNoncritical(codes, noncritical):
		return defaults.StatusGood, ExpectedGood, nil
	case nexceptions > 0:
		return defaults.StatusException, ExpectedIncorrect, nil
	case nwarnings > 0:
		return defaults.StatusWarn, ExpectedIncorrect, nil
	}
	return "", "", fmt.Errorf("%w: nexceptions=%d nwarnings=%d codes=%v",
		ErrInvalidValidationAttribute, nexceptions, nwarnings, codes)
}

func allNoncritical(codes []string, noncritical func(string) bool) bool {
	if noncritical == nil {
		return false
	}
	for _, c := range codes {
		if !noncritical(c) {
			return false
		}
	}
	return true
}
