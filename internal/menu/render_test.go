package menu

import (
	"strings"
	"testing"
	"time"
)

func TestItemLabel(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	item := Item{Label: "Alice", Count: 3, Time: now.Add(-5 * time.Minute).UnixMicro()}

	got := ItemLabel(item, now)
	if got != "Alice (3) · 5 minutes ago" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ItemLabel(Item{Label: "Bob"}, now); got != "Bob" {
		t.Fatalf("expected bare label, got %q", got)
	}
}

func TestRowsSeparatesSections(t *testing.T) {
	sections := []Section{
		{ID: "a", Label: "Chat", Items: []Item{{Label: "one", Target: "indicator.a.src.1"}}},
		{ID: "b", Items: []Item{{Label: "two", Target: "indicator.b.msg.2", Detail: "hello"}}},
	}
	rows := Rows(sections, time.Now())
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d: %+v", len(rows), rows)
	}
	if !rows[0].Header || rows[0].Label != "Chat" {
		t.Fatalf("expected header row, got %+v", rows[0])
	}
	if !rows[2].Separator {
		t.Fatalf("expected separator between sections, got %+v", rows[2])
	}
	if rows[3].Tooltip != "hello" {
		t.Fatalf("expected detail as tooltip, got %+v", rows[3])
	}
}

func TestRowsPlaceholderWhenEmpty(t *testing.T) {
	rows := Rows(nil, time.Now())
	if len(rows) != 1 || rows[0].Target != "" {
		t.Fatalf("expected inert placeholder, got %+v", rows)
	}
}

func TestActionName(t *testing.T) {
	if got := ActionName("indicator.x.src.1"); got != "x.src.1" {
		t.Fatalf("expected x.src.1, got %q", got)
	}
	if got := ActionName("remove-all"); got != "remove-all" {
		t.Fatalf("expected unprefixed name untouched, got %q", got)
	}
}

func TestRenderTextListsTargets(t *testing.T) {
	out := RenderText([]Section{{ID: "a", Label: "Chat", Items: []Item{{Label: "one", Target: "indicator.a.src.1", DrawsAttention: true}}}}, time.Now())
	for _, want := range []string{"Chat", "one", "a.src.1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
