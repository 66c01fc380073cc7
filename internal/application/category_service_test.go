package application

import (
	"context"
	"errors"
	"testing"
)

func TestCategoryService(t *testing.T) {
	t.Parallel()

	owner := Principal{UserID: "user-1"}

	t.Run("creates and lists categories by name", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		svc := NewCategoryService(store, idSequence("cat"), fixedClock(testNow))

		for _, name := range []string{"work", " errands "} {
			if _, err := svc.CreateCategory(context.Background(), owner, CategoryInput{Name: name, Color: "#ff0000"}); err != nil {
				t.Fatalf("CreateCategory(%q) failed: %v", name, err)
			}
		}

		categories, err := svc.ListCategories(context.Background(), owner)
		if err != nil {
			t.Fatalf("ListCategories failed: %v", err)
		}
		if len(categories) != 2 || categories[0].Name != "errands" || categories[1].Name != "work" {
			t.Fatalf("unexpected categories %+v", categories)
		}
	})

	t.Run("reports duplicate names as validation errors", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		svc := NewCategoryService(store, idSequence("cat"), fixedClock(testNow))

		if _, err := svc.CreateCategory(context.Background(), owner, CategoryInput{Name: "work"}); err != nil {
			t.Fatalf("CreateCategory failed: %v", err)
		}
		_, err := svc.CreateCategory(context.Background(), owner, CategoryInput{Name: "work"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["name"] == "" {
			t.Fatalf("expected name validation error, got %v", err)
		}

		if _, err := svc.CreateCategory(context.Background(), Principal{UserID: "user-2"}, CategoryInput{Name: "work"}); err != nil {
			t.Fatalf("expected other owners to reuse the name, got %v", err)
		}
	})

	t.Run("requires a name", func(t *testing.T) {
		t.Parallel()

		svc := NewCategoryService(newMemoryStore(), nil, nil)
		_, err := svc.CreateCategory(context.Background(), owner, CategoryInput{Name: "  "})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("deletes only owned categories", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.seedCategory(Category{ID: "cat-1", OwnerID: "user-2", Name: "theirs"})
		svc := NewCategoryService(store, nil, nil)

		if err := svc.DeleteCategory(context.Background(), owner, "cat-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := svc.DeleteCategory(context.Background(), Principal{UserID: "user-2"}, "cat-1"); err != nil {
			t.Fatalf("DeleteCategory failed: %v", err)
		}
	})
}
