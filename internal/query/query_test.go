package query

import (
	"strings"
	"testing"

	"ocrlocate/internal/model"
)

func TestBuildMatchExpr(t *testing.T) {
	expr, err := BuildMatchExpr(model.QuerySimple, []string{"foo", "bar*"})
	if err != nil {
		t.Fatalf("BuildMatchExpr: %v", err)
	}
	if !strings.Contains(expr, `\*`) {
		t.Errorf("expected escaped asterisk in %q", expr)
	}

	if _, err := BuildMatchExpr(model.QueryGlob, []string{"*"}); err == nil {
		t.Error("expected error for non-FTS kind")
	}
}

func TestNewMatcher_Glob(t *testing.T) {
	m, err := NewMatcher(model.QueryGlob, []string{"**/invoice*.png"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if ok, _, _ := m.Match("dir/sub/invoice123.png"); !ok {
		t.Error("expected glob match")
	}
	if ok, _, _ := m.Match("dir/sub/receipt.png"); ok {
		t.Error("expected no match")
	}
}

func TestNewMatcher_Regex(t *testing.T) {
	m, err := NewMatcher(model.QueryRegex, []string{`\d{3}-\d{4}`})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	ok, start, end := m.Match("call 555-1234 now")
	if !ok || start != 5 || end != 13 {
		t.Errorf("Match = %v %d %d, want true 5 13", ok, start, end)
	}

	if _, err := NewMatcher(model.QueryRegex, []string{"("}); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestSnippet_Truncation(t *testing.T) {
	content := strings.Repeat("a", 200) + "NEEDLE" + strings.Repeat("b", 200)
	start := strings.Index(content, "NEEDLE")
	end := start + len("NEEDLE")

	got := Snippet(content, start, end)
	if !strings.Contains(got, "[NEEDLE]") {
		t.Errorf("snippet %q missing bracketed match", got)
	}
	if !strings.HasPrefix(got, "..") || !strings.HasSuffix(got, "..") {
		t.Errorf("snippet %q should be ellipsised on both ends", got)
	}
}

func TestSnippet_ShortContentNoEllipsis(t *testing.T) {
	content := "short NEEDLE text"
	start := strings.Index(content, "NEEDLE")
	end := start + len("NEEDLE")

	got := Snippet(content, start, end)
	if strings.HasPrefix(got, "..") || strings.HasSuffix(got, "..") {
		t.Errorf("snippet %q should not be ellipsised", got)
	}
}
