package model

// Outcome is the structured result an actuator reports for one code.
type Outcome struct {
	Amount  *float64               `json:"amount,omitempty"`
	Notes   string                 `json:"notes"`
	Details map[string]interface{} `json:"details,omitempty"`
}
