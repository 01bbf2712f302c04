package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

// namespaceExists はコレクションが既に存在するときのサーバーエラーコード。
const namespaceExists = 48

var intTypes = bson.A{"int", "long"}

// SurveyValidator は surveys コレクションの $jsonSchema バリデータ。
func SurveyValidator() bson.M {
	categories := bson.A{}
	for _, c := range domain.Categories() {
		categories = append(categories, string(c))
	}
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"surveyNumber", "title", "authorId", "authorName", "createdAt", "updatedAt", "published", "questions"},
		"properties": bson.M{
			"surveyNumber": bson.M{"bsonType": intTypes, "minimum": 1},
			"title":        bson.M{"bsonType": "string"},
			"authorId":     bson.M{"bsonType": intTypes},
			"authorName":   bson.M{"bsonType": "string"},
			"createdAt":    bson.M{"bsonType": "date"},
			"updatedAt":    bson.M{"bsonType": "date"},
			"published":    bson.M{"bsonType": intTypes, "enum": bson.A{0, 1}},
			"questionSeq":  bson.M{"bsonType": intTypes, "minimum": 0},
			"questions": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": bson.A{"number", "category", "text"},
					"properties": bson.M{
						"number":   bson.M{"bsonType": intTypes, "minimum": 1},
						"category": bson.M{"enum": categories},
						"text":     bson.M{"bsonType": "string"},
						"options": bson.M{
							"bsonType": "array",
							"items":    bson.M{"bsonType": bson.A{"string", "int", "long"}},
						},
					},
				},
			},
		},
	}}
}

// ResponseValidator は responses コレクションの $jsonSchema バリデータ。
func ResponseValidator() bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"surveyNumber", "respondentId", "respondentName", "respondentEmail", "submittedAt", "answers"},
		"properties": bson.M{
			"surveyNumber":    bson.M{"bsonType": intTypes, "minimum": 1},
			"respondentId":    bson.M{"bsonType": intTypes},
			"respondentName":  bson.M{"bsonType": "string"},
			"respondentEmail": bson.M{"bsonType": "string"},
			"submittedAt":     bson.M{"bsonType": "date"},
			"answers": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": bson.A{"questionNumber", "category", "text", "answer"},
					"properties": bson.M{
						"questionNumber": bson.M{"bsonType": intTypes, "minimum": 1},
						"category":       bson.M{"bsonType": "string"},
						"text":           bson.M{"bsonType": "string"},
						"answer":         bson.M{"bsonType": bson.A{"string", "array", "int", "long"}},
					},
				},
			},
		},
	}}
}

// EnsureSchema はバリデータとインデックスを冪等に適用する。既存コレクションには collMod で上書きする。
func EnsureSchema(ctx context.Context, db *mongo.Database, surveyCollection, responseCollection string) error {
	if err := ensureValidator(ctx, db, surveyCollection, SurveyValidator()); err != nil {
		return err
	}
	if err := ensureValidator(ctx, db, responseCollection, ResponseValidator()); err != nil {
		return err
	}

	_, err := db.Collection(surveyCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "surveyNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("surveyNumber_unique"),
		},
		{
			Keys:    bson.D{{Key: "published", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("published_id"),
		},
	})
	if err != nil {
		return fmt.Errorf("create survey indexes: %w", err)
	}

	_, err = db.Collection(responseCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "surveyNumber", Value: 1}, {Key: "submittedAt", Value: -1}},
		Options: options.Index().SetName("surveyNumber_submittedAt"),
	})
	if err != nil {
		return fmt.Errorf("create response indexes: %w", err)
	}
	return nil
}

func ensureValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
	if err == nil {
		return nil
	}
	var serverErr mongo.ServerError
	if !errors.As(err, &serverErr) || !serverErr.HasErrorCode(namespaceExists) {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	cmd := bson.D{{Key: "collMod", Value: name}, {Key: "validator", Value: validator}}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("collMod %s: %w", name, err)
	}
	return nil
}
