package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the closed set of question types.
type Category string

const (
	CategorySingleChoice   Category = "single_choice"
	CategoryMultipleChoice Category = "multiple_choice"
	CategoryYesNo          Category = "yes_no"
	CategoryOpenText       Category = "open_text"
	CategoryNumeric        Category = "numeric"
	CategoryRatingScale    Category = "rating_scale"
)

// Categories returns every valid category.
func Categories() []Category {
	return []Category{
		CategorySingleChoice,
		CategoryMultipleChoice,
		CategoryYesNo,
		CategoryOpenText,
		CategoryNumeric,
		CategoryRatingScale,
	}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// RequiresOptions reports whether questions of this category need a non-empty option list.
func (c Category) RequiresOptions() bool {
	return c == CategorySingleChoice || c == CategoryMultipleChoice
}

// AnswerKind is the answer shape accepted for this category.
func (c Category) AnswerKind() ValueKind {
	switch c {
	case CategoryMultipleChoice:
		return KindChoices
	case CategoryNumeric, CategoryRatingScale:
		return KindNumber
	case CategorySingleChoice, CategoryYesNo, CategoryOpenText:
		return KindText
	default:
		return KindUnset
	}
}

// Question belongs to exactly one survey. Number is assigned by the repository.
type Question struct {
	Number   int      `json:"number"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
	Options  []Option `json:"options,omitempty"`
}

// Validate checks a question as supplied by a caller, before numbering.
func (q Question) Validate() error {
	return q.validateContent()
}

func (q Question) validateContent() error {
	if !q.Category.Valid() {
		return fmt.Errorf("unknown category %q", q.Category)
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("text is required")
	}
	if q.Category.RequiresOptions() && len(q.Options) == 0 {
		return fmt.Errorf("category %s requires options", q.Category)
	}
	return nil
}

// MaxQuestionNumber returns the highest Number in questions, or 0.
func MaxQuestionNumber(questions []Question) int {
	highest := 0
	for _, q := range questions {
		if q.Number > highest {
			highest = q.Number
		}
	}
	return highest
}
