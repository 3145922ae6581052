package entity

type ExecutionResult struct {
	Success     bool   `json:"success"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	Message     string `json:"message"`
}

func NewFailedResult(msg string) *ExecutionResult {
	return &ExecutionResult{
		Success: false,
		Message: msg,
	}
}

// Sender is the identity a message goes out under.
type Sender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
