package vcsmirror

import (
	"reflect"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/org/repo.git": "https-example.com-org-repo.git",
		"git@example.com:org/repo.git":     "git-example.com-org-repo.git",
	}
	for in, want := range cases {
		if got := sanitizeURL(in); got != want {
			t.Errorf("sanitizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeURLIsStableAndUnique(t *testing.T) {
	a := sanitizeURL("https://example.com/org/one.git")
	b := sanitizeURL("https://example.com/org/two.git")
	if a == b {
		t.Fatalf("expected distinct URLs to sanitize to distinct paths")
	}
	if a != sanitizeURL("https://example.com/org/one.git") {
		t.Fatalf("expected sanitizeURL to be deterministic")
	}
}

func TestSortTagsReverseChronological(t *testing.T) {
	raw := []string{"1.0.0", "2.0.0", "1.1.0", "release-candidate"}
	got := sortTagsReverseChronological(raw)
	want := []string{"2.0.0", "1.1.0", "1.0.0", "release-candidate"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortTagsReverseChronological(%v) = %v, want %v", raw, got, want)
	}
}

func TestParseGitmodules(t *testing.T) {
	blob := []byte(`[submodule "vendor/foo"]
	path = vendor/foo
	url = https://example.com/foo.git
[submodule "vendor/bar"]
	path = vendor/bar
	url = https://example.com/bar.git
`)
	entries := parseGitmodules(blob)
	if len(entries) != 2 {
		t.Fatalf("expected 2 submodule entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].name != "vendor/foo" || entries[0].path != "vendor/foo" || entries[0].url != "https://example.com/foo.git" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].name != "vendor/bar" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}
