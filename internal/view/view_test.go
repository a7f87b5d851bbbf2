package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hiroki-koketsu/go-todo/internal/model"
)

var errOffline = errors.New("connection refused")

type fakeAPI struct {
	mu      sync.Mutex
	tasks   []*model.Task
	next    int
	calls   int
	failAll bool
}

func (f *fakeAPI) List(context.Context) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, errOffline
	}
	out := make([]*model.Task, len(f.tasks))
	for i, t := range f.tasks {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeAPI) Create(_ context.Context, title string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, errOffline
	}
	f.next++
	now := time.Now().UTC()
	t := &model.Task{ID: fmt.Sprintf("t%d", f.next), Title: title, CreatedAt: now, UpdatedAt: now}
	f.tasks = append([]*model.Task{t}, f.tasks...)
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) Update(_ context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, errOffline
	}
	for _, t := range f.tasks {
		if t.ID == id {
			if req.Completed != nil {
				t.Completed = *req.Completed
			}
			if req.Title != nil {
				t.Title = *req.Title
			}
			t.UpdatedAt = time.Now().UTC()
			cp := *t
			return &cp, nil
		}
	}
	return nil, &model.NotFoundError{ID: id}
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return errOffline
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) setOffline(offline bool) {
	f.mu.Lock()
	f.failAll = offline
	f.mu.Unlock()
}

func newView(t *testing.T, titles ...string) (*View, *fakeAPI, *bytes.Buffer) {
	t.Helper()
	api := &fakeAPI{}
	for _, title := range titles {
		api.Create(context.Background(), title)
	}
	var buf bytes.Buffer
	v := New(api, log.New(&buf))
	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return v, api, &buf
}

func titles(tasks []model.Task) string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return strings.Join(out, ",")
}

func TestLoadMirrorsServerOrder(t *testing.T) {
	v, _, _ := newView(t, "A", "B", "C")
	if got := titles(v.Tasks()); got != "C,B,A" {
		t.Fatalf("order=%s", got)
	}
}

func TestLoadFailureKeepsMirror(t *testing.T) {
	v, api, logs := newView(t, "A")
	api.setOffline(true)

	if err := v.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if got := titles(v.Tasks()); got != "A" {
		t.Fatalf("mirror changed on failure: %s", got)
	}
	if !strings.Contains(logs.String(), "load tasks") {
		t.Fatalf("failure not logged: %q", logs.String())
	}
}

func TestAddPrepends(t *testing.T) {
	v, _, _ := newView(t, "A")

	if err := v.Add(context.Background(), "  B  "); err != nil {
		t.Fatalf("add: %v", err)
	}
	tasks := v.Tasks()
	if titles(tasks) != "B,A" {
		t.Fatalf("order=%s", titles(tasks))
	}
	if tasks[0].Completed {
		t.Fatalf("new task should not be completed")
	}
}

func TestAddBlankSkipsAPI(t *testing.T) {
	v, api, _ := newView(t)
	before := api.calls

	for _, title := range []string{"", "   ", "\t"} {
		if err := v.Add(context.Background(), title); err != nil {
			t.Fatalf("add %q: %v", title, err)
		}
	}
	if api.calls != before {
		t.Fatalf("blank titles reached the API")
	}
	if v.Len() != 0 {
		t.Fatalf("blank titles were added")
	}
}

func TestAddFailureLeavesMirror(t *testing.T) {
	v, api, _ := newView(t, "A")
	api.setOffline(true)

	if err := v.Add(context.Background(), "B"); err == nil {
		t.Fatalf("expected add error")
	}
	if got := titles(v.Tasks()); got != "A" {
		t.Fatalf("mirror=%s", got)
	}
}

func TestToggleSuccess(t *testing.T) {
	v, _, _ := newView(t, "A")
	id := v.Tasks()[0].ID

	if err := v.Toggle(context.Background(), id); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !v.Tasks()[0].Completed {
		t.Fatalf("task not completed after toggle")
	}
	if err := v.Toggle(context.Background(), id); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if v.Tasks()[0].Completed {
		t.Fatalf("task still completed after second toggle")
	}
}

func TestToggleRollsBackOnFailure(t *testing.T) {
	v, api, logs := newView(t, "A")
	id := v.Tasks()[0].ID

	completed, err := v.BeginToggle(id)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !completed || !v.Tasks()[0].Completed {
		t.Fatalf("optimistic flip not visible")
	}

	api.setOffline(true)
	if err := v.FinishToggle(context.Background(), id, completed); !errors.Is(err, errOffline) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if v.Tasks()[0].Completed {
		t.Fatalf("failed toggle was not rolled back")
	}
	if !strings.Contains(logs.String(), "toggle task") {
		t.Fatalf("failure not logged: %q", logs.String())
	}
}

func TestRollbackSkipsNewerState(t *testing.T) {
	v, api, _ := newView(t, "A")
	id := v.Tasks()[0].ID

	first, _ := v.BeginToggle(id)  // false -> true
	second, _ := v.BeginToggle(id) // true -> false

	api.setOffline(true)
	v.FinishToggle(context.Background(), id, first)

	if v.Tasks()[0].Completed != second {
		t.Fatalf("rollback of an older toggle overwrote the newer one")
	}
}

func TestToggleUnknownTask(t *testing.T) {
	v, api, _ := newView(t)
	before := api.calls

	if err := v.Toggle(context.Background(), "missing"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if api.calls != before {
		t.Fatalf("unknown task reached the API")
	}
}

func TestRemove(t *testing.T) {
	v, api, _ := newView(t, "A", "B")
	id := v.Tasks()[0].ID

	api.setOffline(true)
	if err := v.Remove(context.Background(), id); err == nil {
		t.Fatalf("expected remove error")
	}
	if v.Len() != 2 {
		t.Fatalf("failed remove changed the mirror")
	}

	api.setOffline(false)
	if err := v.Remove(context.Background(), id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := titles(v.Tasks()); got != "A" {
		t.Fatalf("mirror=%s", got)
	}
}
