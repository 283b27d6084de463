package semver

import "testing"

func TestParseSemanticVersion(t *testing.T) {
	cases := []struct {
		in                   string
		major, minor, patch  int64
		wantErr              bool
	}{
		{in: "1", major: 1, minor: 0, patch: 0},
		{in: "1.2", major: 1, minor: 2, patch: 0},
		{in: "1.2.3", major: 1, minor: 2, patch: 3},
		{in: "v1.2.3", major: 1, minor: 2, patch: 3},
		{in: "", wantErr: true},
		{in: "not-a-version", wantErr: true},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseSemanticVersion(c.in)
			if c.wantErr {
				if err == nil {
					t.Fatalf("ParseSemanticVersion(%q): expected error", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSemanticVersion(%q): unexpected error: %v", c.in, err)
			}
			if got.Major != c.major || got.Minor != c.minor || got.Patch != c.patch {
				t.Fatalf("ParseSemanticVersion(%q) = %+v, want %d.%d.%d", c.in, got, c.major, c.minor, c.patch)
			}
		})
	}
}

func TestCompareAndMax(t *testing.T) {
	v1 := mustParse(t, "1.0.0")
	v2 := mustParse(t, "1.1.0")

	if !v1.LessThan(v2) {
		t.Fatalf("expected %s < %s", v1, v2)
	}
	if v2.LessThan(v1) {
		t.Fatalf("expected %s !< %s", v2, v1)
	}
	if v1.Max(v2) != v2 {
		t.Fatalf("Max(%s, %s) = %s, want %s", v1, v2, v1.Max(v2), v2)
	}
}

func TestPinnedVersionSemantic(t *testing.T) {
	p := PinnedVersion("2.3.4")
	sem, ok := p.Semantic()
	if !ok {
		t.Fatalf("expected %q to parse", p)
	}
	if sem.String() != "2.3.4" {
		t.Fatalf("got %s, want 2.3.4", sem)
	}

	branch := PinnedVersion("feature/foo")
	if _, ok := branch.Semantic(); ok {
		t.Fatalf("expected branch name not to parse as semantic version")
	}
}

func mustParse(t *testing.T, s string) SemanticVersion {
	t.Helper()
	v, err := ParseSemanticVersion(s)
	if err != nil {
		t.Fatalf("ParseSemanticVersion(%q): %v", s, err)
	}
	return v
}
