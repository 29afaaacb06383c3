package repl

import (
	"context"
	"testing"

	"github.com/cadencehq/foresight/internal/types"
)

type fakeQueue struct {
	items    []*types.AutoFixItem
	approved []string
	rejected []string
}

func (f *fakeQueue) Pending(ctx context.Context, projectID string) ([]*types.AutoFixItem, error) {
	return f.items, nil
}

func (f *fakeQueue) Approve(ctx context.Context, id string) error {
	f.approved = append(f.approved, id)
	return nil
}

func (f *fakeQueue) Reject(ctx context.Context, id string) error {
	f.rejected = append(f.rejected, id)
	return nil
}

func newTestREPL(t *testing.T, queue *fakeQueue) *REPL {
	t.Helper()
	r, err := New(&Config{Queue: queue, ProjectID: "proj-1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r.ctx = context.Background()
	return r
}

func queueItems() []*types.AutoFixItem {
	return []*types.AutoFixItem{
		{ID: "fix-a", Title: "Refactor handler", TargetFiles: []string{"a.go"}, RiskLevel: types.RiskLow},
		{ID: "fix-b", Title: "Split parser", TargetFiles: []string{"b.go"}, RiskLevel: types.RiskMedium},
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(&Config{ProjectID: "proj-1"}); err == nil {
		t.Error("Missing queue must be rejected")
	}
	if _, err := New(&Config{Queue: &fakeQueue{}}); err == nil {
		t.Error("Missing project ID must be rejected")
	}
}

func TestResolveItem(t *testing.T) {
	queue := &fakeQueue{items: queueItems()}
	r := newTestREPL(t, queue)
	if err := r.cmdList(nil); err != nil {
		t.Fatalf("cmdList failed: %v", err)
	}

	item, err := r.resolveItem([]string{"2"})
	if err != nil {
		t.Fatalf("Index resolution failed: %v", err)
	}
	if item.ID != "fix-b" {
		t.Errorf("Expected fix-b at index 2, got %s", item.ID)
	}

	item, err = r.resolveItem([]string{"fix-a"})
	if err != nil {
		t.Fatalf("ID resolution failed: %v", err)
	}
	if item.Title != "Refactor handler" {
		t.Errorf("Unexpected item %s", item.Title)
	}

	if _, err := r.resolveItem([]string{"9"}); err == nil {
		t.Error("Out-of-range index must fail")
	}
	if _, err := r.resolveItem([]string{"no-such-id"}); err == nil {
		t.Error("Unknown ID must fail")
	}
	if _, err := r.resolveItem(nil); err == nil {
		t.Error("Missing argument must fail")
	}
}

func TestApproveAndReject(t *testing.T) {
	queue := &fakeQueue{items: queueItems()}
	r := newTestREPL(t, queue)
	if err := r.cmdList(nil); err != nil {
		t.Fatalf("cmdList failed: %v", err)
	}

	if err := r.processInput("approve 1"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if len(queue.approved) != 1 || queue.approved[0] != "fix-a" {
		t.Errorf("Expected fix-a approved, got %v", queue.approved)
	}

	if err := r.processInput("reject fix-b"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if len(queue.rejected) != 1 || queue.rejected[0] != "fix-b" {
		t.Errorf("Expected fix-b rejected, got %v", queue.rejected)
	}

	if err := r.processInput("frobnicate"); err == nil {
		t.Error("Unknown command must error")
	}
}
