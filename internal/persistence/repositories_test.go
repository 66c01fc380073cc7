package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/persistence"
	"github.com/example/todosync/internal/testfixtures"
)

func TestUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := harness.SeedUser(t, testfixtures.WithUserEmail("Alice@Example.com"))

	fetched, err := harness.Users.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if fetched.ID != user.ID || fetched.PasswordHash != user.PasswordHash {
		t.Fatalf("unexpected user: %+v", fetched)
	}

	duplicate := testfixtures.NewUserFixture(testfixtures.WithUserEmail("alice@example.com")).Persistence()
	if err := harness.Users.CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := harness.Users.GetUser(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	user := harness.SeedUser(t)
	base := testfixtures.ReferenceTime()

	session := testfixtures.NewSessionFixture(testfixtures.WithSessionUserID(user.ID)).Persistence()
	if _, err := harness.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	revokedAt := base.Add(time.Minute)
	revoked, err := harness.Sessions.RevokeSession(ctx, session.Token, revokedAt)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(revokedAt) {
		t.Fatalf("expected revoked timestamp %v, got %v", revokedAt, revoked.RevokedAt)
	}

	expired := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionExpiresAt(base.Add(-time.Minute)),
	).Persistence()
	if _, err := harness.Sessions.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := harness.Sessions.DeleteExpiredSessions(ctx, base); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, expired.Token); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected expired session to be pruned, got %v", err)
	}
}

func TestTodoRepository(t *testing.T) {
	t.Parallel()

	t.Run("loads the full graph and scopes by owner", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		owner := harness.SeedUser(t)
		stranger := harness.SeedUser(t)
		work := harness.SeedCategory(t, testfixtures.WithCategoryOwner(owner.ID), testfixtures.WithCategoryName("Work"))

		todo := harness.SeedTodo(t,
			testfixtures.WithTodoOwner(owner.ID),
			testfixtures.WithTodoTitle("Buy milk"),
			testfixtures.WithTodoCategories(work.ID),
			testfixtures.WithTodoSubtask("Find shop", true),
			testfixtures.WithTodoSubtask("Pay", false),
		)

		fetched, err := harness.Todos.GetTodo(ctx, owner.ID, todo.ID)
		if err != nil {
			t.Fatalf("GetTodo failed: %v", err)
		}
		if fetched.Title != "Buy milk" || fetched.Priority != string(application.PriorityMedium) {
			t.Fatalf("unexpected todo: %+v", fetched)
		}
		if len(fetched.Categories) != 1 || fetched.Categories[0].Name != "Work" {
			t.Fatalf("expected the Work category, got %+v", fetched.Categories)
		}
		if len(fetched.Subtasks) != 2 || fetched.Subtasks[0].Title != "Find shop" || !fetched.Subtasks[0].Completed {
			t.Fatalf("unexpected subtasks: %+v", fetched.Subtasks)
		}

		if _, err := harness.Todos.GetTodo(ctx, stranger.ID, todo.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a foreign owner, got %v", err)
		}
		if err := harness.Todos.DeleteTodo(ctx, stranger.ID, todo.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected foreign delete to fail with ErrNotFound, got %v", err)
		}
	})

	t.Run("filters listings", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		owner := harness.SeedUser(t)
		home := harness.SeedCategory(t, testfixtures.WithCategoryOwner(owner.ID))

		done := harness.SeedTodo(t, testfixtures.WithTodoOwner(owner.ID), testfixtures.WithTodoStatus(application.StatusCompleted))
		tagged := harness.SeedTodo(t, testfixtures.WithTodoOwner(owner.ID), testfixtures.WithTodoCategories(home.ID))
		urgent := harness.SeedTodo(t, testfixtures.WithTodoOwner(owner.ID), testfixtures.WithTodoPriority(application.PriorityUrgent))

		cases := []struct {
			name   string
			filter persistence.TodoFilter
			want   []string
		}{
			{name: "all newest first", filter: persistence.TodoFilter{OwnerID: owner.ID}, want: []string{urgent.ID, tagged.ID, done.ID}},
			{name: "status", filter: persistence.TodoFilter{OwnerID: owner.ID, Status: "COMPLETED"}, want: []string{done.ID}},
			{name: "priority", filter: persistence.TodoFilter{OwnerID: owner.ID, Priority: "URGENT"}, want: []string{urgent.ID}},
			{name: "category", filter: persistence.TodoFilter{OwnerID: owner.ID, CategoryID: home.ID}, want: []string{tagged.ID}},
			{name: "other owner", filter: persistence.TodoFilter{OwnerID: "nobody"}, want: nil},
		}
		for _, tc := range cases {
			todos, err := harness.Todos.ListTodos(ctx, tc.filter)
			if err != nil {
				t.Fatalf("%s: ListTodos failed: %v", tc.name, err)
			}
			var got []string
			for _, todo := range todos {
				got = append(got, todo.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
				}
			}
		}
	})

	t.Run("delete cascades to subtasks and comments", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		owner := harness.SeedUser(t)
		todo := harness.SeedTodo(t, testfixtures.WithTodoOwner(owner.ID), testfixtures.WithTodoSubtask("Pay", false))

		comment := persistence.Comment{ID: "comment-1", TodoID: todo.ID, AuthorID: owner.ID, Body: "soon", CreatedAt: testfixtures.ReferenceTime()}
		if err := harness.Todos.CreateComment(ctx, comment); err != nil {
			t.Fatalf("CreateComment failed: %v", err)
		}

		if err := harness.Todos.DeleteTodo(ctx, owner.ID, todo.ID); err != nil {
			t.Fatalf("DeleteTodo failed: %v", err)
		}
		subtaskID := todo.PersistenceSubtasks()[0].ID
		if _, err := harness.Todos.GetSubtask(ctx, todo.ID, subtaskID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected subtask to be removed, got %v", err)
		}
		if err := harness.Todos.DeleteComment(ctx, todo.ID, comment.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected comment to be removed, got %v", err)
		}
	})

	t.Run("rejects comments on missing todos", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		owner := harness.SeedUser(t)

		err := harness.Todos.CreateComment(ctx, persistence.Comment{ID: "c", TodoID: "missing", AuthorID: owner.ID, Body: "x", CreatedAt: testfixtures.ReferenceTime()})
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})
}

func TestTeamRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	member := harness.SeedUser(t)

	if err := harness.Teams.AddTeamMember(ctx, "core", member.ID); err != nil {
		t.Fatalf("AddTeamMember failed: %v", err)
	}
	if err := harness.Teams.AddTeamMember(ctx, "core", member.ID); err != nil {
		t.Fatalf("repeated AddTeamMember should be a no-op, got %v", err)
	}

	ok, err := harness.Teams.IsTeamMember(ctx, "core", member.ID)
	if err != nil || !ok {
		t.Fatalf("expected membership, got %v, %v", ok, err)
	}
	ok, err = harness.Teams.IsTeamMember(ctx, "other", member.ID)
	if err != nil || ok {
		t.Fatalf("expected no membership in other team, got %v, %v", ok, err)
	}
}
