package bonuspipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// RetwistOptions параметры одного переформулирования
type RetwistOptions struct {
	Strategy entity.RetwistStrategy
	Quality  entity.RetwistQuality
	Variant  int // номер вариации, с 0
}

// Retwister превращает исходный вопрос в новый кандидат.
// Реализация непрозрачна для пайплайна; контракт: та же категория и сложность,
// валидный CorrectOption в пределах Options.
type Retwister interface {
	Retwist(ctx context.Context, source entity.Question, opts RetwistOptions) (entity.Question, error)
}

// ErrEmptySource исходный вопрос без текста или вариантов
var ErrEmptySource = errors.New("source question has no text or options")

// TemplateRetwister детерминированная реализация Retwister на шаблонах
type TemplateRetwister struct{}

// NewTemplateRetwister создает шаблонный переформулировщик
func NewTemplateRetwister() *TemplateRetwister {
	return &TemplateRetwister{}
}

var synonyms = map[string]string{
	"who":     "which person",
	"what":    "which",
	"where":   "in what place",
	"when":    "at what time",
	"said":    "declared",
	"wrote":   "authored",
	"built":   "constructed",
	"first":   "earliest",
	"called":  "named",
	"king":    "ruler",
	"city":    "town",
	"son":     "offspring",
	"went":    "traveled",
	"gave":    "handed",
	"many":    "how many",
	"kill":    "slay",
	"killed":  "slew",
	"book":    "scroll",
	"prophet": "seer",
}

var perspectives = []string{
	"a disciple",
	"a temple priest",
	"a traveler in Judea",
	"a scribe",
	"a shepherd",
}

var creativeFrames = []string{
	"Quick challenge",
	"Scripture riddle",
	"Test your memory",
	"Bonus round",
}

// Retwist реализует Retwister
func (r *TemplateRetwister) Retwist(ctx context.Context, source entity.Question, opts RetwistOptions) (entity.Question, error) {
	if err := ctx.Err(); err != nil {
		return entity.Question{}, err
	}
	text := strings.TrimSpace(source.Text)
	if text == "" || len(source.Options) == 0 {
		return entity.Question{}, ErrEmptySource
	}
	if !opts.Strategy.IsValid() {
		return entity.Question{}, fmt.Errorf("unknown retwist strategy %q", opts.Strategy)
	}

	var out string
	switch opts.Strategy {
	case entity.StrategySynonym:
		out = synonymize(text, opts.Variant)
	case entity.StrategyParaphrase:
		out = paraphrase(text, opts.Variant)
	case entity.StrategyPerspective:
		out = withPerspective(text, opts.Variant)
	case entity.StrategyContext:
		out = withContext(text, source.Category, opts.Variant)
	case entity.StrategyCreative:
		out = creative(text, opts.Variant)
	case entity.StrategyHybrid:
		out = hybrid(text, source.Category, opts)
	}

	options, correct := arrangeOptions(source.Options, source.CorrectOption, opts)

	return entity.Question{
		TenantID:      source.TenantID,
		Text:          out,
		Options:       options,
		CorrectOption: correct,
		Category:      source.Category,
		Difficulty:    source.Difficulty,
		Source:        entity.SourceAI,
	}, nil
}

func synonymize(text string, variant int) string {
	words := strings.Fields(text)
	replaced := 0
	for i, w := range words {
		core := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		syn, ok := synonyms[strings.ToLower(core)]
		if !ok {
			continue
		}
		if unicode.IsUpper([]rune(core)[0]) {
			syn = capitalize(syn)
		}
		words[i] = strings.Replace(w, core, syn, 1)
		replaced++
	}
	out := strings.Join(words, " ")
	if replaced == 0 || variant > 0 {
		out = fmt.Sprintf("%s (variation %d)", out, variant+1)
	}
	return out
}

func paraphrase(text string, variant int) string {
	frames := []string{
		"In other words: %s",
		"Put differently, %s",
		"Consider this: %s",
	}
	return fmt.Sprintf(frames[variant%len(frames)], lowerFirst(text))
}

func withPerspective(text string, variant int) string {
	return fmt.Sprintf("From the perspective of %s: %s", perspectives[variant%len(perspectives)], lowerFirst(text))
}

func withContext(text, category string, variant int) string {
	if category == "" {
		category = "Scripture"
	}
	if variant == 0 {
		return fmt.Sprintf("In the context of %s, %s", category, lowerFirst(text))
	}
	return fmt.Sprintf("Recalling %s (part %d), %s", category, variant+1, lowerFirst(text))
}

func creative(text string, variant int) string {
	return fmt.Sprintf("%s #%d: %s", creativeFrames[variant%len(creativeFrames)], variant+1, text)
}

// hybrid комбинирует стратегии; чем выше качество, тем больше шагов
func hybrid(text, category string, opts RetwistOptions) string {
	out := synonymize(text, opts.Variant)
	if opts.Quality == entity.QualityStandard || opts.Quality == entity.QualityPremium {
		out = withContext(out, category, opts.Variant)
	}
	if opts.Quality == entity.QualityPremium {
		out = withPerspective(out, opts.Variant)
	}
	return out
}

// arrangeOptions для premium качества сдвигает варианты, сохраняя правильный ответ
func arrangeOptions(options entity.StringArray, correct int, opts RetwistOptions) (entity.StringArray, int) {
	out := make(entity.StringArray, len(options))
	if opts.Quality != entity.QualityPremium || len(options) < 2 {
		copy(out, options)
		return out, correct
	}
	shift := (opts.Variant + 1) % len(options)
	for i, opt := range options {
		out[(i+shift)%len(options)] = opt
	}
	return out, (correct + shift) % len(options)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	// Имена собственные в начале вопроса не трогаем
	if len(r) > 1 && unicode.IsUpper(r[1]) {
		return s
	}
	if strings.HasPrefix(s, "I ") {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
