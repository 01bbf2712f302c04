package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/survey-platform/api/internal/survey/application"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// ResponseStore は回答ドキュメントを MongoDB で扱う実装。
type ResponseStore struct {
	collection *mongo.Collection
}

var _ application.ResponseStore = (*ResponseStore)(nil)

// NewResponseStore は responses コレクションを束縛したストアを構築する。
func NewResponseStore(db *mongo.Database, collection string) *ResponseStore {
	return &ResponseStore{collection: db.Collection(collection)}
}

// Insert は回答を追加し、採番した ObjectID の16進表現を返す。
func (s *ResponseStore) Insert(ctx context.Context, response domain.Response) (string, error) {
	doc := mapDomainResponseToDocument(response)
	doc.ID = primitive.NewObjectID()
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return "", classifyError("insert response", err)
	}
	return doc.ID.Hex(), nil
}

func (s *ResponseStore) CountBySurvey(ctx context.Context, surveyNumber int) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"surveyNumber": surveyNumber})
	if err != nil {
		return 0, classifyError("count responses", err)
	}
	return int(count), nil
}

// LatestBySurvey は submittedAt が最も新しい回答を返す。同時刻なら後から挿入されたもの。
func (s *ResponseStore) LatestBySurvey(ctx context.Context, surveyNumber int) (*domain.Response, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "submittedAt", Value: -1},
		{Key: "_id", Value: -1},
	})

	var doc ResponseDocument
	if err := s.collection.FindOne(ctx, bson.M{"surveyNumber": surveyNumber}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classifyError("read latest response", err)
	}
	response, err := mapResponseDocument(doc)
	if err != nil {
		return nil, classifyError("map response", err)
	}
	return &response, nil
}

// FindBySurvey はアンケートに紐づく全回答を挿入順で返す。
func (s *ResponseStore) FindBySurvey(ctx context.Context, surveyNumber int) ([]domain.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"surveyNumber": surveyNumber}, opts)
	if err != nil {
		return nil, classifyError("list responses", err)
	}
	defer cursor.Close(ctx)

	var docs []ResponseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classifyError("decode responses", err)
	}

	responses := make([]domain.Response, 0, len(docs))
	for _, doc := range docs {
		response, err := mapResponseDocument(doc)
		if err != nil {
			return nil, classifyError("map response", err)
		}
		responses = append(responses, response)
	}
	return responses, nil
}
