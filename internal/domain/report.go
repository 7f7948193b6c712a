package domain

// Severity levels returned by report text classification.
const (
	SeverityUrgent  = "urgent"
	SeverityMedium  = "medium"
	SeverityLow     = "low"
	SeverityUnknown = "unknown"
	SeverityError   = "error"
)

const (
	ImageClassNotProvided = "not_provided"
	AnalysisFailed        = "AI analysis failed"
)

type ReportData struct {
	IssueType   string  `json:"issueType"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Photo       *string `json:"photo"`
}

type TextAnalysis struct {
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion"`
}

type ImageAnalysis struct {
	Class string `json:"class"`
}

type ReportResult struct {
	Status        string        `json:"status"`
	Data          ReportData    `json:"data"`
	TextAnalysis  TextAnalysis  `json:"textAnalysis"`
	ImageAnalysis ImageAnalysis `json:"imageAnalysis"`
}

type FirstAidAdvice struct {
	Disclaimer string   `json:"disclaimer"`
	Actions    []string `json:"actions"`
	Medicines  []string `json:"medicines"`
}

type Facility struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Distance string `json:"distance"`
	Type     string `json:"type"`
}

type FacilitiesResult struct {
	Message    string     `json:"message"`
	Facilities []Facility `json:"facilities"`
}
