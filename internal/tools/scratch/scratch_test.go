package scratch

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/steward/internal/scratch"
)

func newSpace(t *testing.T) *scratch.Space {
	t.Helper()
	s, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteThenRead(t *testing.T) {
	space := newSpace(t)
	ctx := context.Background()

	res := NewWriteTool(space).Execute(ctx, map[string]any{
		"path":    "notes/today.md",
		"content": "# Today\n- water plants",
	})
	if !res.OK() {
		t.Fatalf("write error: %s", res.Err)
	}
	if res.Data["bytes"] != len("# Today\n- water plants") {
		t.Errorf("bytes = %v", res.Data["bytes"])
	}

	res = NewReadTool(space).Execute(ctx, map[string]any{"path": "notes/today.md"})
	if !res.OK() {
		t.Fatalf("read error: %s", res.Err)
	}
	if res.Data["content"] != "# Today\n- water plants" {
		t.Errorf("content = %v", res.Data["content"])
	}
}

func TestReadMissingFile(t *testing.T) {
	res := NewReadTool(newSpace(t)).Execute(context.Background(), map[string]any{"path": "ghost.txt"})
	if res.OK() {
		t.Fatal("read of missing file succeeded")
	}
	if !strings.Contains(res.Err, "does not exist") {
		t.Errorf("err = %q", res.Err)
	}
}

func TestTraversalBecomesToolError(t *testing.T) {
	space := newSpace(t)
	ctx := context.Background()

	for _, path := range []string{"../outside.txt", "/etc/passwd", ".."} {
		if res := NewWriteTool(space).Execute(ctx, map[string]any{"path": path, "content": "x"}); res.OK() {
			t.Errorf("write to %q succeeded", path)
		}
		if res := NewReadTool(space).Execute(ctx, map[string]any{"path": path}); res.OK() {
			t.Errorf("read of %q succeeded", path)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	space := newSpace(t)
	ctx := context.Background()

	NewWriteTool(space).Execute(ctx, map[string]any{"path": "a.txt", "content": "aa"})
	NewWriteTool(space).Execute(ctx, map[string]any{"path": "b.txt", "content": "bbbb"})

	res := NewListTool(space).Execute(ctx, map[string]any{})
	if !res.OK() || res.Data["count"] != 2 {
		t.Fatalf("list = %+v err=%s", res.Data, res.Err)
	}
	files, ok := res.Data["files"].([]map[string]any)
	if !ok || len(files) != 2 {
		t.Fatalf("files = %+v", res.Data["files"])
	}
	if files[0]["name"] != "a.txt" || files[0]["size"] != int64(2) {
		t.Errorf("entry = %+v", files[0])
	}

	res = NewDeleteTool(space).Execute(ctx, map[string]any{"path": "a.txt"})
	if !res.OK() || res.Data["deleted"] != "a.txt" {
		t.Errorf("delete = %+v err=%s", res.Data, res.Err)
	}

	res = NewListTool(space).Execute(ctx, map[string]any{})
	if res.Data["count"] != 1 {
		t.Errorf("count after delete = %v", res.Data["count"])
	}

	if res := NewDeleteTool(space).Execute(ctx, map[string]any{"path": "a.txt"}); res.OK() {
		t.Error("second delete succeeded")
	}
}
