package dependency

import "testing"

func TestName(t *testing.T) {
	cases := []struct {
		dep  Dependency
		want string
	}{
		{Git("https://example.com/org/repo.git"), "org/repo"},
		{Git("git@example.com:org/repo.git"), "org/repo"},
		{GitHub("", "alice", "widgets"), "alice/widgets"},
		{GitHub("enterprise.example.com", "alice", "widgets"), "alice/widgets"},
		{Binary("https://example.com/bin/Foo.json"), "bin/Foo.json"},
	}

	for _, c := range cases {
		if got := c.dep.Name(); got != c.want {
			t.Errorf("%+v.Name() = %q, want %q", c.dep, got, c.want)
		}
	}
}

func TestEqualIsStructural(t *testing.T) {
	a := GitHub("", "alice", "widgets")
	b := GitHub("github.com", "alice", "widgets")

	if a.Equal(b) {
		t.Fatalf("dependencies with differing Server fields should not be equal (structural equality)")
	}

	c := GitHub("", "alice", "widgets")
	if !a.Equal(c) {
		t.Fatalf("identical dependencies should be equal")
	}
}

func TestCartfileOrderAndDuplicates(t *testing.T) {
	cf := NewCartfile()
	first := cf.Add(GitHub("", "a", "one"), nil)
	second := cf.Add(GitHub("", "b", "two"), nil)
	dup := cf.Add(GitHub("", "a", "one"), nil)

	if !first || !second {
		t.Fatalf("expected first insertions to report true")
	}
	if dup {
		t.Fatalf("expected duplicate insertion to report false")
	}

	entries := cf.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Dependency.Name() != "a/one" || entries[1].Dependency.Name() != "b/two" {
		t.Fatalf("expected manifest-order preserved, got %+v", entries)
	}
}

func TestResolvedCartfileSortsCaseInsensitively(t *testing.T) {
	rc := NewResolvedCartfile([]ResolvedEntry{
		{Dependency: GitHub("", "Zed", "z"), Pinned: "1.0.0"},
		{Dependency: GitHub("", "alice", "a"), Pinned: "1.0.0"},
		{Dependency: GitHub("", "Bob", "b"), Pinned: "1.0.0"},
	})

	names := make([]string, len(rc.Entries))
	for i, e := range rc.Entries {
		names[i] = e.Dependency.Name()
	}

	want := []string{"alice/a", "Bob/b", "Zed/z"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sorted entries = %v, want %v", names, want)
		}
	}
}
