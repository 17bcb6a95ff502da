package dto

// APIErrorResponse is the uniform error body. Reason carries the
// machine-readable policy code when the failure is a policy or enforcement
// denial.
type APIErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}
