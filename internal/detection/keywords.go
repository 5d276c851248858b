package detection

import "github.com/vietddude/relihub/internal/core/domain"

// categoryRule holds the phrases that signal a category and the phrases
// that, when nearby, raise confidence in the match.
type categoryRule struct {
	category domain.Category
	keywords []string
	positive []string
}

// rules is scanned in order; earlier entries win confidence ties.
var rules = []categoryRule{
	{
		category: domain.CategoryCommit,
		keywords: []string{"git commit", "committed", "git push", "pushed to"},
		positive: []string{"files changed", "insertions(+)", "create mode", "-> main", "-> master"},
	},
	{
		category: domain.CategoryDeployment,
		keywords: []string{"deployment successful", "deployment complete", "deployed to", "successfully deployed", "kubectl apply", "docker push"},
		positive: []string{"success", "live", "rolled out", "✅"},
	},
	{
		category: domain.CategoryTestSuccess,
		keywords: []string{"all tests passed", "tests passed", "test suite passed", "0 failures", "passing"},
		positive: []string{"success", "ok", "✅", "100%"},
	},
	{
		category: domain.CategoryBugFixed,
		keywords: []string{"bug fixed", "fixed bug", "fixed the bug", "issue resolved", "resolved issue", "hotfix applied"},
		positive: []string{"verified", "resolved", "✅"},
	},
	{
		category: domain.CategoryBuildSuccess,
		keywords: []string{"build successful", "build succeeded", "successfully built", "compiled successfully", "build complete"},
		positive: []string{"success", "0 warnings", "✅"},
	},
	{
		category: domain.CategoryFileCreated,
		keywords: []string{"file created", "created file", "successfully wrote", "wrote to", "new file"},
		positive: []string{"bytes", "saved", "✅"},
	},
}

// failureIndicators lower confidence when found close to a keyword.
var failureIndicators = []string{
	"failed",
	"error",
	"unauthorized",
	"404",
	"fatal",
	"denied",
	"rejected",
	"exception",
	"traceback",
	"not found",
	"❌",
}

// titleKeywords maps a category to words expected in a matching work item
// title. Only consulted in strict matching mode.
var titleKeywords = map[domain.Category][]string{
	domain.CategoryCommit:       {"commit", "push", "git", "merge", "pull request"},
	domain.CategoryDeployment:   {"deploy", "release", "rollout", "ship", "publish"},
	domain.CategoryTestSuccess:  {"test", "spec", "coverage", "qa"},
	domain.CategoryBugFixed:     {"bug", "fix", "issue", "hotfix", "defect"},
	domain.CategoryBuildSuccess: {"build", "compile", "bundle", "package"},
	domain.CategoryFileCreated:  {"file", "create", "write", "add", "doc"},
}

// TitleKeywords returns the title words associated with a category.
func TitleKeywords(category domain.Category) []string {
	return titleKeywords[category]
}
