package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BRO3886/story-indexer/internal/types"
)

var ErrNoSections = errors.New("story has no sections")

// Options tune how section content is collected.
type Options struct {
	// LegacyLastWins keeps only the final step (and qa pair) of the final
	// steps (and questions) section, matching records built by earlier
	// versions of the indexer.
	LegacyLastWins bool `koanf:"legacy_last_wins"`
}

// SectionFields is the part of an IndexRecord derived from a story's
// sections. Nil pointers mean no section of that type was seen.
type SectionFields struct {
	FirstTitle        string
	FirstDesc         string
	BannerTitle       *string
	BannerDescription *string
	Steps             *string
	Questions         *string
	Section           string
}

// ExtractSections walks the sections in order and collects their text.
// Every call starts from empty state.
func ExtractSections(sections []types.Section, opts Options) (SectionFields, error) {
	var out SectionFields
	if len(sections) == 0 {
		return out, ErrNoSections
	}

	first := sections[0]
	if first.Title != nil {
		out.FirstTitle = Sanitize(*first.Title)
	}
	if first.Desc1 != nil {
		out.FirstDesc = Sanitize(*first.Desc1)
	}

	var (
		content   strings.Builder
		steps     strings.Builder
		questions strings.Builder
		seenSteps bool
		seenQA    bool
	)

	for i, section := range sections {
		switch section.Type {
		case types.SectionBanner:
			title, desc, err := titleAndDesc(i, section)
			if err != nil {
				return out, err
			}
			out.BannerTitle = ptr(Sanitize(title))
			out.BannerDescription = ptr(Sanitize(desc))

		case types.SectionSteps:
			if section.Steps == nil {
				return out, fmt.Errorf("%w: sections[%d].steps", types.ErrMissingField, i)
			}
			if opts.LegacyLastWins {
				steps.Reset()
			}
			for j, step := range section.Steps {
				title, err := types.Required(fmt.Sprintf("sections[%d].steps[%d].title", i, j), step.Title)
				if err != nil {
					return out, err
				}
				desc, err := types.Required(fmt.Sprintf("sections[%d].steps[%d].desc", i, j), step.Desc)
				if err != nil {
					return out, err
				}
				if opts.LegacyLastWins {
					steps.Reset()
				}
				writePair(&steps, title, desc)
			}
			seenSteps = true

		case types.SectionQuestions:
			if section.QA == nil {
				return out, fmt.Errorf("%w: sections[%d].qa", types.ErrMissingField, i)
			}
			if opts.LegacyLastWins {
				questions.Reset()
			}
			for j, qa := range section.QA {
				que, err := types.Required(fmt.Sprintf("sections[%d].qa[%d].que", i, j), qa.Question)
				if err != nil {
					return out, err
				}
				ans, err := types.Required(fmt.Sprintf("sections[%d].qa[%d].ans", i, j), qa.Answer)
				if err != nil {
					return out, err
				}
				if opts.LegacyLastWins {
					questions.Reset()
				}
				writePair(&questions, que, ans)
			}
			seenQA = true

		case types.SectionSection:
			title, desc, err := titleAndDesc(i, section)
			if err != nil {
				return out, err
			}
			content.WriteString("\n")
			writePair(&content, title, desc)
		}
	}

	if seenSteps {
		out.Steps = ptr(Sanitize(steps.String()))
	}
	if seenQA {
		out.Questions = ptr(Sanitize(questions.String()))
	}
	out.Section = Sanitize(content.String())

	return out, nil
}

// writePair appends "a\nb\n\n".
func writePair(b *strings.Builder, a, c string) {
	b.WriteString(a)
	b.WriteString("\n")
	b.WriteString(c)
	b.WriteString("\n\n")
}

func titleAndDesc(i int, section types.Section) (string, string, error) {
	title, err := types.Required(fmt.Sprintf("sections[%d].title", i), section.Title)
	if err != nil {
		return "", "", err
	}
	desc, err := types.Required(fmt.Sprintf("sections[%d].desc1", i), section.Desc1)
	if err != nil {
		return "", "", err
	}
	return title, desc, nil
}

func ptr(s string) *string {
	return &s
}
