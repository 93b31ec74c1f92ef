package worker

import (
	"regexp"

	"github.com/devorc/orchestrator/internal/process"
)

var (
	reMochaFailing = regexp.MustCompile(`(?m)(\d+)\s+failing`)
	reJestFailed   = regexp.MustCompile(`(?m)Tests:\s+(\d+)\s+failed`)
	rePytestFailed = regexp.MustCompile(`(?m)(\d+)\s+failed`)
)

// interpretTestResult derives pass/fail from known test-runner output
// markers (vitest/jest/mocha/pytest); when none are recognized it falls
// back to the subprocess exit code, per spec.md §4.5.
func interpretTestResult(res process.Result) TestResult {
	if m := reMochaFailing.FindStringSubmatch(res.Output); m != nil {
		return TestResult{Passed: m[1] == "0", Output: res.Output, Duration: res.Duration}
	}
	if m := reJestFailed.FindStringSubmatch(res.Output); m != nil {
		return TestResult{Passed: m[1] == "0", Output: res.Output, Duration: res.Duration}
	}
	if m := rePytestFailed.FindStringSubmatch(res.Output); m != nil {
		return TestResult{Passed: m[1] == "0", Output: res.Output, Duration: res.Duration}
	}
	return TestResult{Passed: res.Passed, Output: res.Output, Duration: res.Duration}
}
