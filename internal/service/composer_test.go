package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

func testJob(handle string) *model.ResearchJob {
	return &model.ResearchJob{
		Handle: handle,
		Context: model.SubmissionContext{
			CompanyID:   "41227",
			CompanyName: "Acme Robotics",
			StageTS:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		State: model.JobStateSubmitted,
	}
}

func TestNewComposer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewComposer(ComposerOptions{})
		require.NoError(t, err)
		assert.Equal(t, "title", c.titleExpr)
		assert.Equal(t, "sections", c.sectionsExpr)
	})

	t.Run("custom expressions", func(t *testing.T) {
		c, err := NewComposer(ComposerOptions{
			TitleExpr:    "report.name",
			SectionsExpr: "report.parts",
		})
		require.NoError(t, err)
		assert.Equal(t, "report.name", c.titleExpr)
		assert.Equal(t, "report.parts", c.sectionsExpr)
	})

	t.Run("invalid expression", func(t *testing.T) {
		c, err := NewComposer(ComposerOptions{TitleExpr: "!!not valid!!"})
		require.Error(t, err)
		assert.Nil(t, c)
	})
}

func TestComposerCompose(t *testing.T) {
	composer := MustNewComposer(ComposerOptions{})

	t.Run("plain JSON output", func(t *testing.T) {
		output := `{"title":"Acme GTM Plan","sections":[` +
			`{"heading":"Overview","body":"Acme builds robots."},` +
			`{"heading":"ICP","body":"Mid-market manufacturers."}]}`

		doc, err := composer.Compose(testJob("resp_1"), output)
		require.NoError(t, err)
		assert.Equal(t, "Acme GTM Plan", doc.Title)
		require.Len(t, doc.Sections, 2)
		assert.Equal(t, "Overview", doc.Sections[0].Heading)
		assert.Equal(t, "Acme builds robots.", doc.Sections[0].Body)
	})

	t.Run("fenced JSON block", func(t *testing.T) {
		output := "Here is your report:\n```json\n" +
			`{"title":"Fenced Report","sections":[{"heading":"A","body":"b"}]}` +
			"\n```\nLet me know if you need more."

		doc, err := composer.Compose(testJob("resp_2"), output)
		require.NoError(t, err)
		assert.Equal(t, "Fenced Report", doc.Title)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "A", doc.Sections[0].Heading)
	})

	t.Run("JSON embedded in prose", func(t *testing.T) {
		output := `Sure! {"title":"Inline","sections":[{"heading":"H","body":"B"}]} done.`

		doc, err := composer.Compose(testJob("resp_3"), output)
		require.NoError(t, err)
		assert.Equal(t, "Inline", doc.Title)
		require.Len(t, doc.Sections, 1)
	})

	t.Run("non-JSON output falls back to raw text", func(t *testing.T) {
		output := "The market for robots is growing.\nAcme is well positioned."

		doc, err := composer.Compose(testJob("resp_4"), output)
		require.NoError(t, err)
		assert.Equal(t, "GTM Research: Acme Robotics", doc.Title)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "Research Findings", doc.Sections[0].Heading)
		assert.Equal(t, output, doc.Sections[0].Body)
	})

	t.Run("missing title uses fallback", func(t *testing.T) {
		output := `{"sections":[{"heading":"H","body":"B"}]}`

		doc, err := composer.Compose(testJob("resp_5"), output)
		require.NoError(t, err)
		assert.Equal(t, "GTM Research: Acme Robotics", doc.Title)
	})

	t.Run("list body rendered as bullet lines", func(t *testing.T) {
		output := `{"title":"T","sections":[{"heading":"Plays","body":["outbound","events"]}]}`

		doc, err := composer.Compose(testJob("resp_6"), output)
		require.NoError(t, err)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "- outbound\n- events", doc.Sections[0].Body)
	})

	t.Run("malformed section entries skipped", func(t *testing.T) {
		output := `{"title":"T","sections":["just a string",{"heading":"Kept","body":"ok"},{}]}`

		doc, err := composer.Compose(testJob("resp_7"), output)
		require.NoError(t, err)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "Kept", doc.Sections[0].Heading)
	})

	t.Run("empty section list falls back to raw text", func(t *testing.T) {
		output := `{"title":"Empty","sections":[]}`

		doc, err := composer.Compose(testJob("resp_8"), output)
		require.NoError(t, err)
		assert.Equal(t, "Empty", doc.Title)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "Research Findings", doc.Sections[0].Heading)
	})

	t.Run("top-level array is not treated as a report", func(t *testing.T) {
		output := `[{"heading":"H","body":"B"}]`

		doc, err := composer.Compose(testJob("resp_9"), output)
		require.NoError(t, err)
		assert.Equal(t, "GTM Research: Acme Robotics", doc.Title)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "Research Findings", doc.Sections[0].Heading)
	})
}

type failingEvaluator struct{}

func (failingEvaluator) Validate(string) error { return nil }

func (failingEvaluator) Evaluate(string, any) (any, error) {
	return nil, errors.New("evaluator broke")
}

func TestComposerComposeEvaluatorFailure(t *testing.T) {
	composer := MustNewComposer(ComposerOptions{Evaluator: failingEvaluator{}})

	doc, err := composer.Compose(testJob("resp_10"), `{"title":"T","sections":[]}`)
	require.Error(t, err)
	assert.Nil(t, doc)
}
