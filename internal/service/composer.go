// Package service contains the business logic of the research document
// pipeline: submission, webhook ingestion, effect execution, and sweeping.
package service

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ComposerOptions groups configuration for Composer.
type ComposerOptions struct {
	// TitleExpr selects the document title from the research result JSON.
	// Empty means "title".
	TitleExpr string
	// SectionsExpr selects the section list from the research result JSON.
	// Each element needs heading and body fields. Empty means "sections".
	SectionsExpr string
	// Evaluator overrides the JMESPath implementation for tests.
	Evaluator JMESPathEvaluator
}

// Composer turns a raw research result into a document layout. The model's
// output is untrusted text that usually carries a JSON block; when no usable
// JSON can be recovered the whole text becomes a single section.
type Composer struct {
	titleExpr    string
	sectionsExpr string
	jems         JMESPathEvaluator
}

// NewComposer constructs a Composer, validating the configured expressions.
func NewComposer(opts ComposerOptions) (*Composer, error) {
	titleExpr := opts.TitleExpr
	if titleExpr == "" {
		titleExpr = "title"
	}
	sectionsExpr := opts.SectionsExpr
	if sectionsExpr == "" {
		sectionsExpr = "sections"
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if err := jems.Validate(titleExpr); err != nil {
		return nil, fmt.Errorf("invalid title expression: %w", err)
	}
	if err := jems.Validate(sectionsExpr); err != nil {
		return nil, fmt.Errorf("invalid sections expression: %w", err)
	}

	return &Composer{titleExpr: titleExpr, sectionsExpr: sectionsExpr, jems: jems}, nil
}

// MustNewComposer constructs a Composer and panics on error.
func MustNewComposer(opts ComposerOptions) *Composer {
	c, err := NewComposer(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Compose builds the document for a completed job.
func (c *Composer) Compose(job *model.ResearchJob, outputText string) (*model.ComposedDocument, error) {
	fallbackTitle := "GTM Research: " + job.Context.CompanyName

	data, ok := extractJSON(outputText)
	if !ok {
		return &model.ComposedDocument{
			Title: fallbackTitle,
			Sections: []model.DocumentSection{
				{Heading: "Research Findings", Body: strings.TrimSpace(outputText)},
			},
		}, nil
	}

	doc := &model.ComposedDocument{Title: fallbackTitle}

	if title, err := c.jems.Evaluate(c.titleExpr, data); err == nil {
		if s, isStr := title.(string); isStr && strings.TrimSpace(s) != "" {
			doc.Title = strings.TrimSpace(s)
		}
	}

	raw, err := c.jems.Evaluate(c.sectionsExpr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate sections expression: %w", err)
	}
	doc.Sections = coerceSections(raw)

	if len(doc.Sections) == 0 {
		doc.Sections = []model.DocumentSection{
			{Heading: "Research Findings", Body: strings.TrimSpace(outputText)},
		}
	}
	return doc, nil
}

// coerceSections converts the evaluated section list into typed sections,
// skipping malformed entries.
func coerceSections(raw any) []model.DocumentSection {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	sections := make([]model.DocumentSection, 0, len(items))
	for _, item := range items {
		obj, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		heading, _ := obj["heading"].(string)
		body := stringifyBody(obj["body"])
		if strings.TrimSpace(heading) == "" && strings.TrimSpace(body) == "" {
			continue
		}
		sections = append(sections, model.DocumentSection{
			Heading: strings.TrimSpace(heading),
			Body:    strings.TrimSpace(body),
		})
	}
	return sections
}

func stringifyBody(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case []any:
		var parts []string
		for _, item := range tv {
			if s, ok := item.(string); ok {
				parts = append(parts, "- "+s)
				continue
			}
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			parts = append(parts, "- "+string(b))
		}
		return strings.Join(parts, "\n")
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprintf("%v", tv)
		}
		return string(b)
	}
}

// extractJSON recovers a JSON object from model output. Tries the whole text
// first, then a fenced ```json block, then the outermost brace pair.
func extractJSON(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	if data, ok := tryUnmarshal(trimmed); ok {
		return data, true
	}

	if fenced, ok := extractFencedBlock(trimmed); ok {
		if data, ok := tryUnmarshal(fenced); ok {
			return data, true
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if data, ok := tryUnmarshal(trimmed[start : end+1]); ok {
			return data, true
		}
	}
	return nil, false
}

func extractFencedBlock(text string) (string, bool) {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		rest := text[start+len(fence):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end]), true
	}
	return "", false
}

func tryUnmarshal(s string) (any, bool) {
	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, false
	}
	if _, isObj := data.(map[string]any); !isObj {
		return nil, false
	}
	return data, true
}
