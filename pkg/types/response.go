package types

// SuccessEnvelope wraps every 2xx JSON body. Meta is only set on list
// responses.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Meta *ListMeta `json:"meta,omitempty"`
}

// ListMeta describes a list payload.
type ListMeta struct {
	Count int `json:"count"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
