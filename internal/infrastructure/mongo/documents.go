package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SurveyDocument は MongoDB 上でのアンケートスキーマを Go 構造体として表現したもの。
// published は 0/1 の整数で保持し、questionSeq はこれまでに払い出した最大の設問番号。
type SurveyDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	SurveyNumber int                `bson:"surveyNumber"`
	Title        string             `bson:"title"`
	AuthorID     int                `bson:"authorId"`
	AuthorName   string             `bson:"authorName"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
	Published    int                `bson:"published"`
	Questions    []QuestionDocument `bson:"questions"`
	QuestionSeq  int                `bson:"questionSeq,omitempty"`
}

// QuestionDocument はアンケートに埋め込まれる設問。options の要素は文字列または整数。
type QuestionDocument struct {
	Number   int    `bson:"number"`
	Category string `bson:"category"`
	Text     string `bson:"text"`
	Options  []any  `bson:"options,omitempty"`
}

// questionSetDocument は設問一覧だけを射影して読むための構造体。
type questionSetDocument struct {
	Questions   []QuestionDocument `bson:"questions"`
	QuestionSeq int                `bson:"questionSeq"`
}

// ResponseDocument は回答者 1 人分の回答を表す。追記のみで更新しない。
type ResponseDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	SurveyNumber    int                `bson:"surveyNumber"`
	RespondentID    int                `bson:"respondentId"`
	RespondentName  string             `bson:"respondentName"`
	RespondentEmail string             `bson:"respondentEmail"`
	SubmittedAt     time.Time          `bson:"submittedAt"`
	Answers         []AnswerDocument   `bson:"answers"`
}

// AnswerDocument の answer は文字列・文字列配列・整数のいずれか。
type AnswerDocument struct {
	QuestionNumber int    `bson:"questionNumber"`
	Category       string `bson:"category"`
	Text           string `bson:"text"`
	Answer         any    `bson:"answer"`
}
