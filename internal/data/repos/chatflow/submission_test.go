package chatflow

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
)

func dataOf(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func TestSubmissionMergeIsMonotonic(t *testing.T) {
	orders := [][]string{
		{"a", "b", "c"},
		{"c", "a", "b"},
		{"b", "c", "a"},
	}
	for _, order := range orders {
		db := testutil.DB(t)
		dbc := dbctx.Context{Ctx: context.Background()}
		repo := NewSubmissionRepo(db, testutil.Logger(t))
		cf := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)

		var id *uuid.UUID
		for _, name := range order {
			sub, err := repo.UpsertField(dbc, id, cf.ID, name, "v-"+name)
			if err != nil {
				t.Fatalf("UpsertField(%s): %v", name, err)
			}
			if id != nil && sub.ID != *id {
				t.Fatalf("submission id changed between answers")
			}
			id = &sub.ID
		}
		sub, err := repo.GetByID(dbc, *id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		want := map[string]any{"a": "v-a", "b": "v-b", "c": "v-c"}
		if got := dataOf(t, sub.Data); !reflect.DeepEqual(got, want) {
			t.Fatalf("order %v: got %v want %v", order, got, want)
		}
		if sub.Status != domainchatflow.SubmissionInProgress || sub.CompletedAt != nil {
			t.Fatalf("expected IN_PROGRESS without completedAt, got %s", sub.Status)
		}
	}
}

func TestSubmissionNoRowBeforeFirstAnswer(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSubmissionRepo(db, testutil.Logger(t))
	cf := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)

	if list, err := repo.ListByChatflow(dbc, cf.ID); err != nil || len(list) != 0 {
		t.Fatalf("expected no submissions, got %d (err=%v)", len(list), err)
	}
	if _, err := repo.UpsertField(dbc, nil, cf.ID, "fullName", "Jane Doe"); err != nil {
		t.Fatalf("UpsertField: %v", err)
	}
	if list, err := repo.ListByChatflow(dbc, cf.ID); err != nil || len(list) != 1 {
		t.Fatalf("expected one submission, got %d (err=%v)", len(list), err)
	}
}

func TestSubmissionFinalizeIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSubmissionRepo(db, testutil.Logger(t))
	cf := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)

	sub, err := repo.UpsertField(dbc, nil, cf.ID, "fullName", "Jane Doe")
	if err != nil {
		t.Fatalf("UpsertField: %v", err)
	}
	full := map[string]any{"fullName": "Jane Doe", "email": "jane@x.com"}

	first, err := repo.Finalize(dbc, &sub.ID, cf.ID, full, domainchatflow.SubmissionCompleted)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if first.CompletedAt == nil {
		t.Fatalf("completedAt not stamped")
	}
	second, err := repo.Finalize(dbc, &sub.ID, cf.ID, full, domainchatflow.SubmissionCompleted)
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	stored, err := repo.GetByID(dbc, sub.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.CompletedAt.Equal(*first.CompletedAt) || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("completedAt changed: %v -> %v", first.CompletedAt, stored.CompletedAt)
	}
	if got := dataOf(t, stored.Data); !reflect.DeepEqual(got, full) {
		t.Fatalf("data changed: %v", got)
	}
	if list, _ := repo.ListByChatflow(dbc, cf.ID); len(list) != 1 {
		t.Fatalf("expected a single submission record, got %d", len(list))
	}

	if _, err := repo.UpsertField(dbc, &sub.ID, cf.ID, "late", "x"); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("expected ErrClosed after completion, got %v", err)
	}
	if _, err := repo.Finalize(dbc, &sub.ID, cf.ID, full, domainchatflow.SubmissionAbandoned); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("expected ErrClosed when abandoning completed submission, got %v", err)
	}
}

func TestSubmissionWrongChatflowIsNotFound(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSubmissionRepo(db, testutil.Logger(t))
	a := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)
	b := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)

	sub, err := repo.UpsertField(dbc, nil, a.ID, "fullName", "Jane")
	if err != nil {
		t.Fatalf("UpsertField: %v", err)
	}
	if _, err := repo.UpsertField(dbc, &sub.ID, b.ID, "fullName", "Mallory"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign chatflow, got %v", err)
	}
}

func TestSubmissionFinalizeRejectsNonTerminalStatus(t *testing.T) {
	db := testutil.DB(t)
	repo := NewSubmissionRepo(db, testutil.Logger(t))
	_, err := repo.Finalize(dbctx.Context{Ctx: context.Background()}, nil, uuid.New(), nil, domainchatflow.SubmissionInProgress)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSubmissionFinalizeWithoutAnswersCreatesNothing(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSubmissionRepo(db, testutil.Logger(t))
	cf := testutil.SeedChatflow(t, context.Background(), db, domainchatflow.StatusPublished, testutil.SampleSchema)

	unknown := uuid.New()
	for _, id := range []*uuid.UUID{nil, nil, &unknown} {
		_, err := repo.Finalize(dbc, id, cf.ID, map[string]any{}, domainchatflow.SubmissionCompleted)
		if !errors.Is(err, errs.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for empty finalize, got %v", err)
		}
	}
	if list, err := repo.ListByChatflow(dbc, cf.ID); err != nil || len(list) != 0 {
		t.Fatalf("expected no submissions, got %d (err=%v)", len(list), err)
	}

	sub, err := repo.Finalize(dbc, nil, cf.ID, map[string]any{"fullName": "Jane"}, domainchatflow.SubmissionCompleted)
	if err != nil {
		t.Fatalf("Finalize with data: %v", err)
	}
	if sub.Status != domainchatflow.SubmissionCompleted {
		t.Fatalf("expected COMPLETED, got %s", sub.Status)
	}
}
