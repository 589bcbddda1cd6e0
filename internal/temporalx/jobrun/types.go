package jobrun

const (
	WorkflowName    = "job_run"
	ActivityExecute = "job_run_execute"

	errTypeAttemptFailed = "JobAttemptFailed"
	errTypeNotFound      = "JobNotFound"
)

// Result is the job row as seen after one activity execution.
type Result struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}
