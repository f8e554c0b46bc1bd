package model

// CompileRequest is the JSON body accepted by POST /compile.
type CompileRequest struct {
	Source string `json:"source"`
	Engine string `json:"engine,omitempty"`
	// Filename overrides the suggested download name.
	Filename string `json:"filename,omitempty"`
}

// CompileFailure is the JSON body returned for every failed compile.
type CompileFailure struct {
	Error FailureDetail `json:"error"`
}

type FailureDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}
