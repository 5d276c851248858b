package domain

// Category is a keyword category recognised in tool output.
type Category string

const (
	CategoryCommit       Category = "commit-related"
	CategoryDeployment   Category = "deployment"
	CategoryTestSuccess  Category = "test-success"
	CategoryBugFixed     Category = "bug-fixed"
	CategoryBuildSuccess Category = "build-success"
	CategoryFileCreated  Category = "file-created"
)

// DetectionResult is the best keyword match found in a piece of tool output.
type DetectionResult struct {
	Keyword        string   `json:"keyword_found,omitempty"`
	Confidence     int      `json:"confidence"`
	Category       Category `json:"category"`
	ContextSnippet string   `json:"context_snippet"`
}
