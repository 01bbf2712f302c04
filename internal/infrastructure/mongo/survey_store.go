package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/survey/application"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// SurveyStore はアンケート集約(設問を埋め込んだドキュメント)を MongoDB で扱う実装。
type SurveyStore struct {
	collection *mongo.Collection
}

var _ application.SurveyStore = (*SurveyStore)(nil)

// NewSurveyStore は surveys コレクションを束縛したストアを構築する。
func NewSurveyStore(db *mongo.Database, collection string) *SurveyStore {
	return &SurveyStore{collection: db.Collection(collection)}
}

// Insert はアンケートを 1 件追加する。surveyNumber の重複は Conflict、スキーマ違反は InvalidArgument になる。
func (s *SurveyStore) Insert(ctx context.Context, survey domain.Survey) error {
	doc := mapDomainSurveyToDocument(survey)
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("survey %d already exists", survey.SurveyNumber)
		}
		return classifyError("insert survey", err)
	}
	return nil
}

// ListPublished は公開済みアンケートを挿入順に offset 件飛ばして最大 limit 件返す。
func (s *SurveyStore) ListPublished(ctx context.Context, offset, limit int) ([]domain.Survey, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"published": 1}, opts)
	if err != nil {
		return nil, classifyError("list surveys", err)
	}
	defer cursor.Close(ctx)

	surveys := make([]domain.Survey, 0, limit)
	for cursor.Next(ctx) {
		var doc SurveyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, classifyError("decode survey", err)
		}
		survey, err := mapSurveyDocument(doc)
		if err != nil {
			return nil, classifyError("map survey", err)
		}
		surveys = append(surveys, survey)
	}
	if err := cursor.Err(); err != nil {
		return nil, classifyError("list surveys", err)
	}
	return surveys, nil
}

// FindByNumber は surveyNumber に一致するアンケートを返す。存在しなければ nil。
func (s *SurveyStore) FindByNumber(ctx context.Context, surveyNumber int) (*domain.Survey, error) {
	var doc SurveyDocument
	if err := s.collection.FindOne(ctx, bson.M{"surveyNumber": surveyNumber}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classifyError("find survey", err)
	}
	survey, err := mapSurveyDocument(doc)
	if err != nil {
		return nil, classifyError("map survey", err)
	}
	return &survey, nil
}

// Update はパッチで指定されたフィールドだけを書き換える。一致したドキュメントがあれば true。
func (s *SurveyStore) Update(ctx context.Context, surveyNumber int, patch domain.SurveyPatch, updatedAt time.Time) (bool, error) {
	set := bson.M{"updatedAt": updatedAt}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.AuthorName != nil {
		set["authorName"] = *patch.AuthorName
	}
	if patch.Published != nil {
		if *patch.Published {
			set["published"] = 1
		} else {
			set["published"] = 0
		}
	}
	return s.updateOne(ctx, "update survey", bson.M{"surveyNumber": surveyNumber}, bson.M{"$set": set})
}

// Delete は設問ごとアンケートを削除する。回答ドキュメントには触れない。
func (s *SurveyStore) Delete(ctx context.Context, surveyNumber int) (bool, error) {
	result, err := s.collection.DeleteOne(ctx, bson.M{"surveyNumber": surveyNumber})
	if err != nil {
		return false, classifyError("delete survey", err)
	}
	return result.DeletedCount > 0, nil
}

func (s *SurveyStore) Publish(ctx context.Context, surveyNumber int, updatedAt time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{"published": 1, "updatedAt": updatedAt}}
	return s.updateOne(ctx, "publish survey", bson.M{"surveyNumber": surveyNumber}, update)
}

// Questions は設問配列と questionSeq だけを射影して読む。アンケートが無ければ nil。
func (s *SurveyStore) Questions(ctx context.Context, surveyNumber int) (*application.QuestionSet, error) {
	opts := options.FindOne().SetProjection(bson.M{"questions": 1, "questionSeq": 1})

	var doc questionSetDocument
	if err := s.collection.FindOne(ctx, bson.M{"surveyNumber": surveyNumber}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classifyError("read questions", err)
	}
	questions, err := mapQuestionDocuments(doc.Questions)
	if err != nil {
		return nil, classifyError("map questions", err)
	}
	return &application.QuestionSet{Questions: questions, HighWater: doc.QuestionSeq}, nil
}

// ReplaceQuestions は設問配列を丸ごと置き換え、questionSeq を $max で引き上げる。
func (s *SurveyStore) ReplaceQuestions(ctx context.Context, surveyNumber int, questions []domain.Question, highWater int, updatedAt time.Time) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"questions": mapQuestionsToDocuments(questions),
			"updatedAt": updatedAt,
		},
		"$max": bson.M{"questionSeq": highWater},
	}
	return s.updateOne(ctx, "replace questions", bson.M{"surveyNumber": surveyNumber}, update)
}

// ReplaceQuestion は位置演算子 $ で番号が一致する設問だけを差し替える。
func (s *SurveyStore) ReplaceQuestion(ctx context.Context, surveyNumber int, question domain.Question, updatedAt time.Time) (bool, error) {
	filter := bson.M{"surveyNumber": surveyNumber, "questions.number": question.Number}
	update := bson.M{"$set": bson.M{
		"questions.$": mapQuestionToDocument(question),
		"updatedAt":   updatedAt,
	}}
	return s.updateOne(ctx, "replace question", filter, update)
}

// SurveyAuthor はアンケートの作成者 ID を返す。認可サービスの所有者確認に使う。
func (s *SurveyStore) SurveyAuthor(ctx context.Context, surveyNumber int) (int, bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"authorId": 1})

	var doc struct {
		AuthorID int `bson:"authorId"`
	}
	if err := s.collection.FindOne(ctx, bson.M{"surveyNumber": surveyNumber}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, classifyError("read survey author", err)
	}
	return doc.AuthorID, true, nil
}

func (s *SurveyStore) updateOne(ctx context.Context, op string, filter, update bson.M) (bool, error) {
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, classifyError(op, err)
	}
	return result.MatchedCount > 0, nil
}

// documentValidationFailure は $jsonSchema バリデータに弾かれた書き込みのエラーコード。
const documentValidationFailure = 121

// classifyError は MongoDB のエラーをアプリケーションのエラー種別へ変換する。
func classifyError(op string, err error) error {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(documentValidationFailure) {
		return apperror.InvalidArgument("%s: document failed schema validation", op)
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperror.Conflict("%s: duplicate key", op)
	}
	return apperror.Unavailable(op, err)
}
