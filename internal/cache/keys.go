package cache

import (
	"fmt"
	"time"
)

// Policy は値の TTL と「存在しない」マーカーの TTL を組で持つ。AbsentTTL が 0 の場合は不在を保存しない。
type Policy struct {
	TTL       time.Duration
	AbsentTTL time.Duration
}

var (
	SurveyListPolicy      = Policy{TTL: time.Hour}
	SurveyPolicy          = Policy{TTL: time.Hour, AbsentTTL: time.Hour}
	QuestionsPolicy       = Policy{TTL: time.Hour, AbsentTTL: 10 * time.Minute}
	ResponsesPolicy       = Policy{TTL: time.Hour}
	ResponseSummaryPolicy = Policy{TTL: time.Hour}
	UserPolicy            = Policy{TTL: time.Hour}

	TokenRolePolicy       = Policy{TTL: 10 * time.Minute}
	TokenActivePolicy     = Policy{TTL: 5 * time.Minute}
	TokenUserPolicy       = Policy{TTL: 10 * time.Minute, AbsentTTL: 10 * time.Minute}
	TokenPermissionPolicy = Policy{TTL: 10 * time.Minute}
)

// SurveyListPrefix は公開アンケート一覧ページ全体を無効化するためのプレフィックス。
const SurveyListPrefix = "surveys:"

func SurveyListKey(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", SurveyListPrefix, page, limit)
}

func SurveyKey(surveyNumber int) string {
	return fmt.Sprintf("survey:%d", surveyNumber)
}

func QuestionsKey(surveyNumber int) string {
	return fmt.Sprintf("survey_questions:%d", surveyNumber)
}

func ResponsesKey(surveyNumber int) string {
	return fmt.Sprintf("survey_responses:%d", surveyNumber)
}

func ResponseSummaryKey(surveyNumber int) string {
	return fmt.Sprintf("survey_responses_summary:%d", surveyNumber)
}

func TokenRoleKey(token string) string {
	return "token:" + token
}

func TokenActiveKey(token string) string {
	return "token_active:" + token
}

// TokenUserPrefix covers every token_user entry of one token.
func TokenUserPrefix(token string) string {
	return "token_user:" + token + ":"
}

func TokenUserKey(token string, authorID int) string {
	return fmt.Sprintf("%s%d", TokenUserPrefix(token), authorID)
}

func TokenPermissionKey(token string) string {
	return "token_permission:" + token
}

const (
	AllUsersKey    = "all_users"
	RespondentsKey = "respondents"
)

func UserKey(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}
