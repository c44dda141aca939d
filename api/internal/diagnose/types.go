// Package diagnose relays crop photos to a vision model and normalizes
// its answer into a fixed-shape diagnosis record.
package diagnose

const DefaultLanguage = "en"

// Request is the body of POST /diagnose.
type Request struct {
	Image    string `json:"image"`    // data:<mime>;base64,<payload>
	Language string `json:"language"` // "en", "hi", ...
}

// Result is the normalized diagnosis.
type Result struct {
	IssueName   string   `json:"issueName"`
	IssueType   string   `json:"issueType"` // Disease | Pest | Fungal | Unidentified | ...
	Confidence  float64  `json:"confidence"`
	IsHealthy   bool     `json:"isHealthy"`
	Description string   `json:"description"`
	Treatment   []string `json:"treatment"`
	Prevention  []string `json:"prevention"`
	DIYTip      string   `json:"diyTip"`
}

// Fallback is substituted whenever the model output cannot be parsed.
func Fallback() Result {
	return Result{
		IssueName:   "Unknown",
		IssueType:   "Unidentified",
		Confidence:  0.0,
		IsHealthy:   true,
		Description: "Could not identify the issue clearly. Please retake the image.",
		Treatment:   []string{},
		Prevention:  []string{},
		DIYTip:      "Capture the affected area clearly in daylight.",
	}
}

// Envelope is the JSON wrapper of every relay response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}
