package model

// TestCaseHeader identifies one test case of a problem.
type TestCaseHeader struct {
	Serial int `json:"serial"`
}

// TestCase is the literal input/expected-output pair for one serial.
type TestCase struct {
	Input          string `json:"in"`
	ExpectedOutput string `json:"out"`
}

// FailedSample records a mismatching or erroring test case for diagnostics.
// Fields are truncated to MaxSampleFieldLen characters.
type FailedSample struct {
	Serial   int    `json:"serial"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Error    string `json:"error,omitempty"`
}

// SubmissionResult is the aggregate of one judging pass.
type SubmissionResult struct {
	PassedCount   int            `json:"passedCount"`
	TotalCount    int            `json:"totalCount"`
	FailedSamples []FailedSample `json:"failedSamples,omitempty"`
	// Aborted is set when the execution backend became unusable mid-run.
	Aborted bool `json:"aborted,omitempty"`
}

const (
	MaxFailedSamples  = 3
	MaxSampleFieldLen = 100
)
