package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/repository"
)

func TestCreateRejectsBlankTitle(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewTaskService(repo, nil)

	for _, title := range []string{"", "   "} {
		_, err := svc.Create(context.Background(), &model.CreateTaskRequest{Title: title})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("title %q: expected ValidationError, got %v", title, err)
		}
	}

	n, _ := repo.Count(context.Background())
	if n != 0 {
		t.Fatalf("invalid create persisted %d tasks", n)
	}
}

func TestCreateTrimsTitle(t *testing.T) {
	svc := NewTaskService(repository.NewMemoryRepository(), nil)

	task, err := svc.Create(context.Background(), &model.CreateTaskRequest{Title: "  buy milk  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "buy milk" {
		t.Fatalf("title=%q", task.Title)
	}
}

func TestUpdateValidatesTitle(t *testing.T) {
	svc := NewTaskService(repository.NewMemoryRepository(), nil)
	task, err := svc.Create(context.Background(), &model.CreateTaskRequest{Title: "original"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	blank := " "
	_, err = svc.Update(context.Background(), task.ID, &model.UpdateTaskRequest{Title: &blank})
	if !errors.Is(err, model.ErrTitleEmpty) {
		t.Fatalf("expected ErrTitleEmpty, got %v", err)
	}

	tasks, _ := svc.List(context.Background())
	if tasks[0].Title != "original" {
		t.Fatalf("rejected update changed title to %q", tasks[0].Title)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	svc := NewTaskService(repository.NewMemoryRepository(), nil)
	if err := svc.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
