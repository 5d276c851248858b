package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/relihub/internal/core/domain"
)

func TestDetect_CommitCommand(t *testing.T) {
	d := New()
	res := d.Detect("git add -A && git commit -m 'feat'")
	require.NotNil(t, res)
	assert.Contains(t, res.Keyword, "commit")
	assert.GreaterOrEqual(t, res.Confidence, 80)
	assert.Equal(t, domain.CategoryCommit, res.Category)
}

func TestDetect_EmptyInput(t *testing.T) {
	d := New()
	assert.Nil(t, d.Detect(""))
	assert.Nil(t, d.Detect("   \n\t"))
	assert.Nil(t, d.Best(""))
}

func TestDetect_NoKeyword(t *testing.T) {
	d := New()
	assert.Nil(t, d.Detect("ls -la\ntotal 0"))
	assert.Nil(t, d.Best("ls -la\ntotal 0"))
}

func TestDetect_CaseInsensitive(t *testing.T) {
	res := New().Detect("BUILD SUCCESSFUL in 3s")
	require.NotNil(t, res)
	assert.Equal(t, domain.CategoryBuildSuccess, res.Category)
	assert.Equal(t, "build successful", res.Keyword)
}

func TestScore(t *testing.T) {
	pad := func(n int) string { return strings.Repeat(" ", n) }

	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "base",
			text: "git commit -m 'x'",
			want: BaseConfidence,
		},
		{
			name: "positive indicator",
			text: "git commit -m 'x'\n 3 files changed, 10 insertions(+)",
			want: 95,
		},
		{
			name: "near failure indicator",
			text: "git push" + pad(10) + "failed",
			want: BaseConfidence - NearPenalty,
		},
		{
			name: "far failure indicator",
			text: "git push" + pad(100) + "failed",
			want: BaseConfidence - FarPenalty,
		},
		{
			name: "failure indicator outside penalty range",
			text: "git push" + pad(300) + "failed",
			want: BaseConfidence,
		},
		{
			name: "nearest indicator decides",
			text: "failed" + pad(100) + "git push" + pad(5) + "error",
			want: BaseConfidence - NearPenalty,
		},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Best(tt.text)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.Confidence)
		})
	}
}

func TestDetect_ThresholdFiltersLowConfidence(t *testing.T) {
	d := New()
	text := "git push origin main: error: failed to push some refs"

	best := d.Best(text)
	require.NotNil(t, best)
	assert.Less(t, best.Confidence, MinConfidence)
	assert.Nil(t, d.Detect(text))
}

func TestDetect_BonusCappedAt100(t *testing.T) {
	res := New().Detect("all tests passed ✅ success 100%")
	require.NotNil(t, res)
	assert.Equal(t, 95, res.Confidence)
	assert.LessOrEqual(t, res.Confidence, 100)
}

func TestDetect_PicksHighestScore(t *testing.T) {
	// The commit sits next to a failure; the deployment is clean.
	text := "git push failed" + strings.Repeat(".", 700) + "deployment successful"
	res := New().Detect(text)
	require.NotNil(t, res)
	assert.Equal(t, domain.CategoryDeployment, res.Category)
}

func TestDetect_TiesKeepDiscoveryOrder(t *testing.T) {
	res := New().Detect("committed. build complete")
	require.NotNil(t, res)
	assert.Equal(t, domain.CategoryCommit, res.Category)
}

func TestSnippet_Bounded(t *testing.T) {
	text := strings.Repeat("a", 1000) + " git commit " + strings.Repeat("b", 1000)
	res := New().Detect(text)
	require.NotNil(t, res)
	assert.LessOrEqual(t, len(res.ContextSnippet), 2*SnippetRadius+len("git commit"))
	assert.Contains(t, res.ContextSnippet, "git commit")
}

func TestSnippet_ValidUTF8(t *testing.T) {
	text := strings.Repeat("é", 60) + "git commit"
	res := New().Detect(text)
	require.NotNil(t, res)
	assert.True(t, strings.Contains(res.ContextSnippet, "git commit"))
	for _, r := range res.ContextSnippet {
		assert.NotEqual(t, '�', r)
	}
}
