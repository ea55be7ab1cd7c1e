// Package section builds the chat messages that ask the model to write one
// section of a chapter.
package section

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed first.tmpl
var firstPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompt keys
const (
	SystemPromptKey = "section.system"
	FirstPromptKey  = "section.first"
	UserPromptKey   = "section.user"
)

const (
	// DefaultTargetWords is used when no estimate is requested.
	DefaultTargetWords = 800

	baseWords          = 600
	wordsPerSubsection = 200
	maxTargetWords     = 2000

	previousSeparator = "\n\n---\n\n"
	notSpecified      = "Not specified"
)

// RegisterPrompts registers the section prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Author persona and formatting rules for every section",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FirstPromptKey,
		Text:        firstPrompt,
		Description: "User prompt for the opening section of a chapter",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPrompt,
		Description: "User prompt for later sections, with previously written sections as context",
	})
}

// NewResolver returns a resolver with the section prompts registered and
// overrides read from overrideDir (may be empty).
func NewResolver(overrideDir string) *prompts.Resolver {
	r := prompts.NewResolver(overrideDir, nil)
	RegisterPrompts(r)
	return r
}

// Previous is an already generated section of the same chapter.
type Previous struct {
	Title   string
	Content string
}

// Input is everything a section prompt is built from.
type Input struct {
	BookTitle   string
	Chapter     *types.Chapter
	Section     *types.Section
	Previous    []Previous
	TargetWords int // 0 uses DefaultTargetWords
}

type templateData struct {
	BookTitle        string
	SectionTitle     string
	ChapterLabel     string
	ChapterTitle     string
	ChapterGoals     string
	SectionOutline   string
	PreviousSections string
	TargetWords      int
}

// Build renders the system and user messages for one section. With no
// previous sections the opening-section variant is used.
func Build(r *prompts.Resolver, in Input) ([]providers.Message, error) {
	target := in.TargetWords
	if target <= 0 {
		target = DefaultTargetWords
	}

	goals := in.Chapter.Goals
	if goals == "" {
		goals = notSpecified
	}

	data := templateData{
		BookTitle:        in.BookTitle,
		SectionTitle:     in.Section.Title,
		ChapterLabel:     ChapterLabel(in.Chapter),
		ChapterTitle:     in.Chapter.Title,
		ChapterGoals:     goals,
		SectionOutline:   in.Section.OutlineContent,
		PreviousSections: FormatPrevious(in.Previous),
		TargetWords:      target,
	}

	system, err := r.Render(SystemPromptKey, data)
	if err != nil {
		return nil, err
	}

	userKey := UserPromptKey
	if len(in.Previous) == 0 {
		userKey = FirstPromptKey
	}
	user, err := r.Render(userKey, data)
	if err != nil {
		return nil, err
	}

	return []providers.Message{
		{Role: providers.RoleSystem, Content: system},
		{Role: providers.RoleUser, Content: user},
	}, nil
}

// ChapterLabel names the chapter the way the prompt refers to it:
// "Preface", "Chapter 3", or "Appendix B".
func ChapterLabel(ch *types.Chapter) string {
	if id := ch.DisplayID(); id != "" {
		return fmt.Sprintf("%s %s", ch.Kind(), id)
	}
	return ch.Kind().String()
}

// FormatPrevious joins previous sections as "### title" blocks separated by
// horizontal rules.
func FormatPrevious(prev []Previous) string {
	parts := make([]string, len(prev))
	for i, p := range prev {
		parts[i] = "### " + p.Title + "\n\n" + p.Content
	}
	return strings.Join(parts, previousSeparator)
}

// EstimateTargetWords scales the word target with the number of ###
// subsections in the brief.
func EstimateTargetWords(s *types.Section) int {
	n := strings.Count(s.OutlineContent, "\n###")
	return min(baseWords+n*wordsPerSubsection, maxTargetWords)
}
