package model

import "encoding/json"

// APIResponse is the uniform envelope {success, message, ...fields}. Fields are
// flattened next to success and message; they cannot override either.
type APIResponse struct {
	Success bool
	Message string
	Fields  map[string]any
}

func (r APIResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["success"] = r.Success
	if r.Message != "" {
		out["message"] = r.Message
	}
	return json.Marshal(out)
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
