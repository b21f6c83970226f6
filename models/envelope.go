package models

// ErrorEnvelope is the JSON body returned for every non-streaming failure.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Fail builds an error envelope with the given message.
func Fail(message string) ErrorEnvelope {
	return ErrorEnvelope{Success: false, Message: message}
}
