package application

import (
	"context"
	"errors"
	"testing"

	"github.com/sngm3741/survey-platform/api/internal/apperror"
	"github.com/sngm3741/survey-platform/api/internal/auth/domain"
)

func TestResolveRoleCachesBothOutcomes(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser(domain.RoleSurveyCreator, "creator-token")
	authz, _ := newTestAuthorization(store, &fakeOwnership{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		role, err := authz.ResolveRole(ctx, "creator-token")
		if err != nil {
			t.Fatalf("ResolveRole returned error: %v", err)
		}
		if role != domain.RoleSurveyCreator {
			t.Fatalf("role = %v, want survey_creator", role)
		}
		unknown, err := authz.ResolveRole(ctx, "nobody")
		if err != nil || unknown != domain.RoleNone {
			t.Fatalf("ResolveRole(nobody) = (%v, %v), want (none, nil)", unknown, err)
		}
	}
	if n := store.callCount("RoleForActiveToken"); n != 2 {
		t.Fatalf("store role lookups = %d, want 2", n)
	}
}

func TestIsActiveCachesInactive(t *testing.T) {
	store := newFakeAuthStore()
	authz, _ := newTestAuthorization(store, &fakeOwnership{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		active, err := authz.IsActive(ctx, "expired")
		if err != nil || active {
			t.Fatalf("IsActive = (%v, %v), want (false, nil)", active, err)
		}
	}
	if n := store.callCount("HasActiveSession"); n != 1 {
		t.Fatalf("store session lookups = %d, want 1", n)
	}
}

func TestBlankTokenSkipsStore(t *testing.T) {
	store := newFakeAuthStore()
	authz, mem := newTestAuthorization(store, &fakeOwnership{})
	ctx := context.Background()

	if ok, _ := authz.CanCreateSurveys(ctx, " "); ok {
		t.Fatalf("blank token may create surveys")
	}
	if ok, _ := authz.IsActive(ctx, ""); ok {
		t.Fatalf("blank token is active")
	}
	if mem.setCount() != 0 || store.callCount("RoleForActiveToken") != 0 {
		t.Fatalf("blank token reached cache or store")
	}
}

func TestStoreFailureIsUnavailableAndNotCached(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser(domain.RoleAdmin, "admin-token")
	authz, mem := newTestAuthorization(store, &fakeOwnership{})
	ctx := context.Background()

	store.setDown(true)
	if _, err := authz.ResolveRole(ctx, "admin-token"); !errors.Is(err, apperror.ErrUnavailable) {
		t.Fatalf("ResolveRole err = %v, want ErrUnavailable", err)
	}
	if _, err := authz.CanCreateSurveys(ctx, "admin-token"); !errors.Is(err, apperror.ErrUnavailable) {
		t.Fatalf("CanCreateSurveys err = %v, want ErrUnavailable", err)
	}
	if n := mem.setCount(); n != 0 {
		t.Fatalf("failure cached: %d writes", n)
	}

	store.setDown(false)
	ok, err := authz.CanCreateSurveys(ctx, "admin-token")
	if err != nil || !ok {
		t.Fatalf("CanCreateSurveys after recovery = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestCanModifySurveyByRole(t *testing.T) {
	store := newFakeAuthStore()
	adminID := store.addUser(domain.RoleAdmin, "admin-token")
	ownerID := store.addUser(domain.RoleSurveyCreator, "owner-token")
	otherID := store.addUser(domain.RoleSurveyCreator, "other-token")
	respondentID := store.addUser(domain.RoleRespondent, "respondent-token")
	owners := &fakeOwnership{authors: map[int]int{10: ownerID}}
	authz, _ := newTestAuthorization(store, owners)
	ctx := context.Background()

	cases := []struct {
		name     string
		authorID int
		token    string
		want     bool
	}{
		{"admin on any survey", adminID, "admin-token", true},
		{"owner", ownerID, "owner-token", true},
		{"other creator", otherID, "other-token", false},
		{"respondent", respondentID, "respondent-token", false},
		{"token of another user", ownerID, "other-token", false},
		{"unknown author", 999, "admin-token", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := authz.CanModifySurvey(ctx, tc.authorID, 10, tc.token)
			if err != nil {
				t.Fatalf("CanModifySurvey returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("CanModifySurvey = %v, want %v", got, tc.want)
			}
		})
	}

	if ok, _ := authz.CanModifySurvey(ctx, ownerID, 404, "owner-token"); ok {
		t.Fatalf("creator may modify a missing survey")
	}
	if ok, _ := authz.CanModifySurvey(ctx, adminID, 404, "admin-token"); !ok {
		t.Fatalf("admin denied on a missing survey")
	}
}

func TestCanModifySurveyReadsOwnershipFromStore(t *testing.T) {
	store := newFakeAuthStore()
	ownerID := store.addUser(domain.RoleSurveyCreator, "owner-token")
	owners := &fakeOwnership{authors: map[int]int{5: ownerID}}
	authz, _ := newTestAuthorization(store, owners)
	ctx := context.Background()

	if ok, _ := authz.CanModifySurvey(ctx, ownerID, 5, "owner-token"); !ok {
		t.Fatalf("owner denied")
	}
	owners.mu.Lock()
	owners.authors[5] = ownerID + 100
	owners.mu.Unlock()
	if ok, _ := authz.CanModifySurvey(ctx, ownerID, 5, "owner-token"); ok {
		t.Fatalf("ownership change not observed")
	}
	if store.callCount("ActiveSessionUser") != 1 {
		t.Fatalf("session user lookups = %d, want 1 (cached)", store.callCount("ActiveSessionUser"))
	}
}

func TestForgetTokenRevokesCachedDecisions(t *testing.T) {
	store := newFakeAuthStore()
	id := store.addUser(domain.RoleSurveyCreator, "tok")
	authz, _ := newTestAuthorization(store, &fakeOwnership{authors: map[int]int{1: id}})
	ctx := context.Background()

	if ok, _ := authz.IsActive(ctx, "tok"); !ok {
		t.Fatalf("session not active")
	}
	if ok, _ := authz.CanModifySurvey(ctx, id, 1, "tok"); !ok {
		t.Fatalf("owner denied")
	}
	if _, err := store.CloseSession(ctx, "tok", store.sessions["tok"].loggedIn); err != nil {
		t.Fatalf("CloseSession returned error: %v", err)
	}
	if ok, _ := authz.IsActive(ctx, "tok"); !ok {
		t.Fatalf("cached activity should survive until forgotten")
	}

	authz.ForgetToken(ctx, "tok")
	if ok, _ := authz.IsActive(ctx, "tok"); ok {
		t.Fatalf("IsActive after ForgetToken = true")
	}
	if ok, _ := authz.CanModifySurvey(ctx, id, 1, "tok"); ok {
		t.Fatalf("CanModifySurvey after ForgetToken = true")
	}
}
