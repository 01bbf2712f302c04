package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/cache"
	"github.com/sngm3741/survey-platform/api/internal/survey/domain"
)

func TestInsertNumbersQuestionsAndNormalizesTimes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken)
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	for i, q := range created.Questions {
		if q.Number != i+1 {
			t.Fatalf("question %d number = %d, want %d", i, q.Number, i+1)
		}
	}
	want := time.Date(2025, 4, 1, 10, 0, 0, 123000000, time.UTC)
	if !created.CreatedAt.Equal(want) || !created.UpdatedAt.Equal(want) {
		t.Fatalf("timestamps = (%v, %v), want %v", created.CreatedAt, created.UpdatedAt, want)
	}
}

func TestInsertRequiresCreateCapability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, token := range []string{respondentToken, expiredToken, ""} {
		if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), token); !errors.Is(err, apperror.ErrPermissionDenied) {
			t.Fatalf("Insert with %q err = %v, want ErrPermissionDenied", token, err)
		}
	}
	if n := f.store.callCount("Insert"); n != 0 {
		t.Fatalf("store Insert calls = %d, want 0", n)
	}
}

func TestInsertDuplicateIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), adminToken); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate Insert err = %v, want ErrConflict", err)
	}
}

func TestInsertClearsCachedAbsence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.surveys.GetByNumber(ctx, 5); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByNumber before insert err = %v", err)
	}
	if _, err := f.surveys.Insert(ctx, sampleSurvey(5, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.GetByNumber(ctx, 5); err != nil {
		t.Fatalf("GetByNumber after insert err = %v", err)
	}
}

func TestGetPublicPagesPublishedSurveysFromCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for n := 1; n <= 5; n++ {
		if _, err := f.surveys.Insert(ctx, sampleSurvey(n, n != 3), adminToken); err != nil {
			t.Fatalf("Insert(%d) returned error: %v", n, err)
		}
	}

	first, err := f.surveys.GetPublic(ctx, 1, 3)
	if err != nil {
		t.Fatalf("GetPublic returned error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("page 1 size = %d, want 3", len(first))
	}
	for _, s := range first {
		if !s.Published {
			t.Fatalf("unpublished survey %d listed", s.SurveyNumber)
		}
	}
	if got := []int{first[0].SurveyNumber, first[1].SurveyNumber, first[2].SurveyNumber}; got[0] != 1 || got[1] != 2 || got[2] != 4 {
		t.Fatalf("page 1 = %v, want [1 2 4]", got)
	}

	again, err := f.surveys.GetPublic(ctx, 1, 3)
	if err != nil {
		t.Fatalf("second GetPublic returned error: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(again)
	if !bytes.Equal(a, b) {
		t.Fatalf("cached page differs:\n%s\n%s", a, b)
	}
	if n := f.store.callCount("ListPublished"); n != 1 {
		t.Fatalf("store ListPublished calls = %d, want 1", n)
	}

	second, _ := f.surveys.GetPublic(ctx, 2, 3)
	if len(second) != 1 || second[0].SurveyNumber != 5 {
		t.Fatalf("page 2 = %+v, want [5]", second)
	}
	empty, err := f.surveys.GetPublic(ctx, 9, 3)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("page past end = (%v, %v), want empty slice", empty, err)
	}
}

func TestGetPublicRejectsBadPaging(t *testing.T) {
	f := newFixture()
	for _, tc := range [][2]int{{0, 10}, {1, 0}, {-1, 5}} {
		if _, err := f.surveys.GetPublic(context.Background(), tc[0], tc[1]); !errors.Is(err, apperror.ErrInvalidArgument) {
			t.Fatalf("GetPublic(%d,%d) err = %v, want ErrInvalidArgument", tc[0], tc[1], err)
		}
	}
	if n := f.store.callCount("ListPublished"); n != 0 {
		t.Fatalf("store reached with invalid paging: %d calls", n)
	}
}

func TestGetByNumberCachesAbsence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.surveys.GetByNumber(ctx, 42); !errors.Is(err, apperror.ErrNotFound) {
			t.Fatalf("GetByNumber err = %v, want ErrNotFound", err)
		}
	}
	if n := f.store.callCount("FindByNumber"); n != 1 {
		t.Fatalf("store FindByNumber calls = %d, want 1", n)
	}
}

func TestUpdateRecachesFromStore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.GetByNumber(ctx, 1); err != nil {
		t.Fatalf("GetByNumber returned error: %v", err)
	}

	title := "Renamed"
	f.clock = f.clock.Add(time.Minute)
	if err := f.surveys.Update(ctx, 1, domain.SurveyPatch{Title: &title}, ownerID, ownerToken); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	reads := f.store.callCount("FindByNumber")
	got, err := f.surveys.GetByNumber(ctx, 1)
	if err != nil {
		t.Fatalf("GetByNumber returned error: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title = %q, want Renamed", got.Title)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updatedAt %v not after createdAt %v", got.UpdatedAt, got.CreatedAt)
	}
	if f.store.callCount("FindByNumber") != reads {
		t.Fatalf("GetByNumber after update missed the cache")
	}
}

func TestModifyDeniedLooksLikeNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	title := "Hijacked"

	checks := map[string]error{
		"update":          f.surveys.Update(ctx, 1, domain.SurveyPatch{Title: &title}, otherID, otherToken),
		"delete":          f.surveys.Delete(ctx, 1, respondentID, respondentToken),
		"publish":         f.surveys.Publish(ctx, 1, otherID, otherToken),
		"delete question": f.surveys.DeleteQuestion(ctx, 1, 1, otherID, otherToken),
	}
	for name, err := range checks {
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Fatalf("%s err = %v, want ErrNotFound", name, err)
		}
	}
	if _, err := f.surveys.InsertQuestions(ctx, 1, []domain.Question{{Category: domain.CategoryYesNo, Text: "?"}}, otherID, otherToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("insert questions err = %v, want ErrNotFound", err)
	}
	if n := f.store.callCount("Update") + f.store.callCount("Delete") + f.store.callCount("Publish"); n != 0 {
		t.Fatalf("denied mutations reached the store %d times", n)
	}

	if err := f.surveys.Update(ctx, 99, domain.SurveyPatch{Title: &title}, adminID, adminToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("admin update of missing survey err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesCachedSurvey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, true), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.GetByNumber(ctx, 1); err != nil {
		t.Fatalf("GetByNumber returned error: %v", err)
	}
	if _, err := f.surveys.GetQuestions(ctx, 1); err != nil {
		t.Fatalf("GetQuestions returned error: %v", err)
	}

	if err := f.surveys.Delete(ctx, 1, ownerID, ownerToken); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := f.surveys.GetByNumber(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByNumber after delete err = %v, want ErrNotFound", err)
	}
	if _, err := f.surveys.GetQuestions(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetQuestions after delete err = %v, want ErrNotFound", err)
	}
	if err := f.surveys.Delete(ctx, 1, adminID, adminToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestPublishRecaches(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	before, _ := f.surveys.GetByNumber(ctx, 1)
	if before.Published {
		t.Fatalf("survey published before Publish")
	}
	if err := f.surveys.Publish(ctx, 1, adminID, adminToken); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	after, _ := f.surveys.GetByNumber(ctx, 1)
	if !after.Published {
		t.Fatalf("cached survey not published after Publish")
	}
}

func TestQuestionNumbersNeverReused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	add := func(texts ...string) []int {
		t.Helper()
		qs := make([]domain.Question, len(texts))
		for i, text := range texts {
			qs[i] = domain.Question{Category: domain.CategoryYesNo, Text: text}
		}
		inserted, err := f.surveys.InsertQuestions(ctx, 1, qs, ownerID, ownerToken)
		if err != nil {
			t.Fatalf("InsertQuestions returned error: %v", err)
		}
		numbers := make([]int, len(inserted))
		for i, q := range inserted {
			numbers[i] = q.Number
		}
		return numbers
	}

	if got := add("third", "fourth"); got[0] != 3 || got[1] != 4 {
		t.Fatalf("first batch numbers = %v, want [3 4]", got)
	}
	if err := f.surveys.DeleteQuestion(ctx, 1, 4, ownerID, ownerToken); err != nil {
		t.Fatalf("DeleteQuestion returned error: %v", err)
	}
	if got := add("fifth"); got[0] != 5 {
		t.Fatalf("number after deleting the max = %d, want 5", got[0])
	}
	if err := f.surveys.DeleteQuestion(ctx, 1, 2, ownerID, ownerToken); err != nil {
		t.Fatalf("DeleteQuestion returned error: %v", err)
	}
	if got := add("sixth"); got[0] != 6 {
		t.Fatalf("number after deleting from the middle = %d, want 6", got[0])
	}

	questions, err := f.surveys.GetQuestions(ctx, 1)
	if err != nil {
		t.Fatalf("GetQuestions returned error: %v", err)
	}
	var numbers []int
	for _, q := range questions {
		numbers = append(numbers, q.Number)
	}
	want := []int{1, 3, 5, 6}
	if len(numbers) != len(want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", numbers, want)
		}
	}
	if err := f.surveys.DeleteQuestion(ctx, 1, 4, ownerID, ownerToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("deleting a removed question err = %v, want ErrNotFound", err)
	}
}

func TestInsertQuestionsValidatesInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.InsertQuestions(ctx, 1, nil, ownerID, ownerToken); !errors.Is(err, apperror.ErrInvalidArgument) {
		t.Fatalf("empty InsertQuestions err = %v, want ErrInvalidArgument", err)
	}
	bad := []domain.Question{{Category: domain.CategoryMultipleChoice, Text: "Pick"}}
	if _, err := f.surveys.InsertQuestions(ctx, 1, bad, ownerID, ownerToken); !errors.Is(err, apperror.ErrInvalidArgument) {
		t.Fatalf("choice without options err = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.surveys.InsertQuestions(ctx, 77, []domain.Question{{Category: domain.CategoryYesNo, Text: "?"}}, adminID, adminToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("InsertQuestions on missing survey err = %v, want ErrNotFound", err)
	}
}

func TestUpdateQuestionReplacesInPlace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := f.surveys.GetQuestions(ctx, 1); err != nil {
		t.Fatalf("GetQuestions returned error: %v", err)
	}

	two := []domain.Question{{Category: domain.CategoryYesNo, Text: "a"}, {Category: domain.CategoryYesNo, Text: "b"}}
	if err := f.surveys.UpdateQuestion(ctx, 1, 1, two, ownerID, ownerToken); !errors.Is(err, apperror.ErrInvalidArgument) {
		t.Fatalf("two replacements err = %v, want ErrInvalidArgument", err)
	}
	repl := []domain.Question{{Number: 99, Category: domain.CategoryRatingScale, Text: "Rate us"}}
	if err := f.surveys.UpdateQuestion(ctx, 1, 2, repl, ownerID, ownerToken); err != nil {
		t.Fatalf("UpdateQuestion returned error: %v", err)
	}
	questions, _ := f.surveys.GetQuestions(ctx, 1)
	if questions[1].Number != 2 || questions[1].Text != "Rate us" || questions[1].Category != domain.CategoryRatingScale {
		t.Fatalf("question 2 = %+v, want replaced in place", questions[1])
	}
	if err := f.surveys.UpdateQuestion(ctx, 1, 7, repl, ownerID, ownerToken); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("missing question err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentQuestionInsertsGetDistinctNumbers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(1, false), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	const writers = 10
	var wg sync.WaitGroup
	results := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := f.surveys.InsertQuestions(ctx, 1, []domain.Question{{Category: domain.CategoryOpenText, Text: "q"}}, ownerID, ownerToken)
			if err != nil {
				t.Errorf("InsertQuestions returned error: %v", err)
				return
			}
			results <- inserted[0].Number
		}()
	}
	wg.Wait()
	close(results)

	var numbers []int
	for n := range results {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+3 {
			t.Fatalf("numbers = %v, want 3..12 without duplicates", numbers)
		}
	}
	questions, _ := f.surveys.GetQuestions(ctx, 1)
	if len(questions) != 2+writers {
		t.Fatalf("cached question count = %d, want %d", len(questions), 2+writers)
	}
	if f.surveys.locks.size() != 0 {
		t.Fatalf("lock table not drained: %d entries", f.surveys.locks.size())
	}
}

func TestStoreOutageIsNotCached(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.mu.Lock()
	f.store.down = true
	f.store.mu.Unlock()

	if _, err := f.surveys.GetByNumber(ctx, 1); !errors.Is(err, apperror.ErrUnavailable) {
		t.Fatalf("GetByNumber err = %v, want ErrUnavailable", err)
	}
	f.store.mu.Lock()
	f.store.down = false
	f.store.mu.Unlock()
	if _, err := f.cache.Get(ctx, cache.SurveyKey(1)); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("outage left a cache entry: %v", err)
	}
}

func TestDeleteDuringReadMissLeavesNoStaleSurvey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.surveys.Insert(ctx, sampleSurvey(5, true), ownerToken); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	gated := newGatedSurveyStore(f.store)
	f.surveys.store = gated

	done := make(chan error, 1)
	go func() {
		_, err := f.surveys.GetByNumber(ctx, 5)
		done <- err
	}()
	<-gated.loaded

	if err := f.surveys.Delete(ctx, 5, ownerID, ownerToken); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	close(gated.release)
	if err := <-done; err != nil {
		t.Fatalf("read started before the delete err = %v, want nil", err)
	}

	survey, err := f.surveys.GetByNumber(ctx, 5)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByNumber after delete = (%+v, %v), want ErrNotFound", survey, err)
	}
}
