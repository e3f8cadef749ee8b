package model

// Biography is the generated narrative plus its deterministic metadata
type Biography struct {
	Narrative   string      `json:"narrative"`
	WordCount   int         `json:"word_count"`
	Confidence  float64     `json:"confidence"` // Always within [0,1]
	SourcesUsed []string    `json:"sources_used"`
	Signals     []Signal    `json:"signals,omitempty"`
	Admissible  SourceIDSet `json:"-"`
	Model       string      `json:"model,omitempty"`
	TokensUsed  int         `json:"tokens_used,omitempty"`
}

// Signal explains one component of the confidence score
type Signal struct {
	Name        string                 `json:"name"`
	Weight      float64                `json:"weight"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
