package handler

import "aegis/internal/access"

// EvaluateResponse is the HTTP response for POST /access/evaluate.
type EvaluateResponse struct {
	Allowed    bool     `json:"allowed"`
	Reason     string   `json:"reason"`
	Conditions []string `json:"conditions"`
}

// FromDecision converts a policy decision to an HTTP response.
func FromDecision(decision access.Decision) *EvaluateResponse {
	conditions := decision.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	return &EvaluateResponse{
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
		Conditions: conditions,
	}
}
