package mongo

import (
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

func mapDomainSurveyToDocument(survey domain.Survey) SurveyDocument {
	published := 0
	if survey.Published {
		published = 1
	}
	questions := mapQuestionsToDocuments(survey.Questions)
	return SurveyDocument{
		SurveyNumber: survey.SurveyNumber,
		Title:        survey.Title,
		AuthorID:     survey.AuthorID,
		AuthorName:   survey.AuthorName,
		CreatedAt:    domain.NormalizeTime(survey.CreatedAt),
		UpdatedAt:    domain.NormalizeTime(survey.UpdatedAt),
		Published:    published,
		Questions:    questions,
		QuestionSeq:  domain.MaxQuestionNumber(survey.Questions),
	}
}

func mapSurveyDocument(doc SurveyDocument) (domain.Survey, error) {
	questions, err := mapQuestionDocuments(doc.Questions)
	if err != nil {
		return domain.Survey{}, fmt.Errorf("survey %d: %w", doc.SurveyNumber, err)
	}
	return domain.Survey{
		SurveyNumber: doc.SurveyNumber,
		Title:        doc.Title,
		AuthorID:     doc.AuthorID,
		AuthorName:   doc.AuthorName,
		CreatedAt:    domain.NormalizeTime(doc.CreatedAt),
		UpdatedAt:    domain.NormalizeTime(doc.UpdatedAt),
		Published:    doc.Published == 1,
		Questions:    questions,
	}, nil
}

func mapQuestionsToDocuments(questions []domain.Question) []QuestionDocument {
	docs := make([]QuestionDocument, 0, len(questions))
	for _, q := range questions {
		docs = append(docs, mapQuestionToDocument(q))
	}
	return docs
}

func mapQuestionToDocument(q domain.Question) QuestionDocument {
	doc := QuestionDocument{Number: q.Number, Category: string(q.Category), Text: q.Text}
	for _, opt := range q.Options {
		if opt.IsNumber() {
			doc.Options = append(doc.Options, opt.Number())
		} else {
			doc.Options = append(doc.Options, opt.Label())
		}
	}
	return doc
}

func mapQuestionDocuments(docs []QuestionDocument) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(docs))
	for _, doc := range docs {
		q := domain.Question{Number: doc.Number, Category: domain.Category(doc.Category), Text: doc.Text}
		for _, raw := range doc.Options {
			opt, err := optionFromDocument(raw)
			if err != nil {
				return nil, fmt.Errorf("question %d: %w", doc.Number, err)
			}
			q.Options = append(q.Options, opt)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func optionFromDocument(raw any) (domain.Option, error) {
	if s, ok := raw.(string); ok {
		return domain.TextOption(s), nil
	}
	n, err := intFromDocument(raw)
	if err != nil {
		return domain.Option{}, fmt.Errorf("option: %w", err)
	}
	return domain.NumberOption(n), nil
}

func mapDomainResponseToDocument(response domain.Response) ResponseDocument {
	answers := make([]AnswerDocument, 0, len(response.Answers))
	for _, a := range response.Answers {
		answers = append(answers, AnswerDocument{
			QuestionNumber: a.QuestionNumber,
			Category:       string(a.Category),
			Text:           a.Text,
			Answer:         answerToDocument(a.Value),
		})
	}
	return ResponseDocument{
		SurveyNumber:    response.SurveyNumber,
		RespondentID:    response.RespondentID,
		RespondentName:  response.RespondentName,
		RespondentEmail: response.RespondentEmail,
		SubmittedAt:     domain.NormalizeTime(response.SubmittedAt),
		Answers:         answers,
	}
}

func mapResponseDocument(doc ResponseDocument) (domain.Response, error) {
	answers := make([]domain.Answer, 0, len(doc.Answers))
	for _, a := range doc.Answers {
		value, err := answerFromDocument(a.Answer)
		if err != nil {
			return domain.Response{}, fmt.Errorf("response %s question %d: %w", doc.ID.Hex(), a.QuestionNumber, err)
		}
		answers = append(answers, domain.Answer{
			QuestionNumber: a.QuestionNumber,
			Category:       domain.Category(a.Category),
			Text:           a.Text,
			Value:          value,
		})
	}
	return domain.Response{
		ID:              doc.ID.Hex(),
		SurveyNumber:    doc.SurveyNumber,
		RespondentID:    doc.RespondentID,
		RespondentName:  doc.RespondentName,
		RespondentEmail: doc.RespondentEmail,
		SubmittedAt:     domain.NormalizeTime(doc.SubmittedAt),
		Answers:         answers,
	}, nil
}

func answerToDocument(v domain.AnswerValue) any {
	switch v.Kind() {
	case domain.KindText:
		return v.Text()
	case domain.KindChoices:
		return v.Choices()
	case domain.KindNumber:
		return v.Number()
	default:
		return nil
	}
}

func answerFromDocument(raw any) (domain.AnswerValue, error) {
	switch value := raw.(type) {
	case string:
		return domain.TextValue(value), nil
	case primitive.A:
		return choicesFromDocument(value)
	case []any:
		return choicesFromDocument(value)
	case []string:
		return domain.ChoicesValue(value...), nil
	}
	n, err := intFromDocument(raw)
	if err != nil {
		return domain.AnswerValue{}, fmt.Errorf("answer: %w", err)
	}
	return domain.NumberValue(n), nil
}

func choicesFromDocument(items []any) (domain.AnswerValue, error) {
	choices := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return domain.AnswerValue{}, fmt.Errorf("answer list holds %T, want string", item)
		}
		choices = append(choices, s)
	}
	return domain.ChoicesValue(choices...), nil
}

// intFromDocument は BSON の int32/int64 と、整数値の double を int に変換する。
func intFromDocument(raw any) (int, error) {
	switch n := raw.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
		return 0, fmt.Errorf("non-integer number %v", n)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}
