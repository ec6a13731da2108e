package judge

// Judge status ids, as reported in status.id.
const (
	StatusAccepted         = 3
	StatusWrongAnswer      = 4
	StatusTimeLimit        = 5
	StatusCompilationError = 6
	StatusInternalError    = 13
	StatusExecFormatError  = 14
)

var statusMessages = map[int]string{
	3:  "Accepted",
	4:  "Wrong Answer",
	5:  "Time Limit Exceeded",
	6:  "Compilation Error",
	7:  "Runtime Error (SIGSEGV)",
	8:  "Runtime Error (SIGXFSZ)",
	9:  "Runtime Error (SIGFPE)",
	10: "Runtime Error (SIGABRT)",
	11: "Runtime Error (NZEC)",
	12: "Runtime Error (Other)",
	13: "Internal Error",
	14: "Exec Format Error",
}

// Verdict is the classification of a judge status id.
type Verdict struct {
	Success bool
	Message string
}

// Classify maps a status id to a verdict. Only Accepted succeeds.
func Classify(statusID int) Verdict {
	msg, ok := statusMessages[statusID]
	if !ok {
		return Verdict{Success: false, Message: "Unknown Error"}
	}
	return Verdict{Success: statusID == StatusAccepted, Message: msg}
}
