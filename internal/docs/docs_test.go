package docs

import (
	"strings"
	"testing"
)

func TestTopics_HaveTitlesAndBodies(t *testing.T) {
	t.Parallel()
	topics := Topics()
	if len(topics) == 0 {
		t.Fatalf("expected embedded topics")
	}
	for _, tp := range topics {
		if tp.Title == "" || tp.Title == tp.Name {
			t.Fatalf("topic %q: missing heading", tp.Name)
		}
		body, ok := Get(strings.ToUpper(tp.Name))
		if !ok || !strings.Contains(body, tp.Title) {
			t.Fatalf("topic %q: Get should be case-insensitive and return the body", tp.Name)
		}
	}
}

func TestGet_RejectsUnknownAndPaths(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "nope", "../docs", "content/sessions"} {
		if _, ok := Get(name); ok {
			t.Fatalf("Get(%q) should fail", name)
		}
	}
}
