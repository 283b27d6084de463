package semver

import "testing"

func v(t *testing.T, s string) SemanticVersion { return mustParse(t, s) }

// TestIntersectAlgebra verifies the algebraic laws of Intersect:
// commutativity, identity under Any, absorption under Empty, associativity.
func TestIntersectAlgebra(t *testing.T) {
	a := AtLeast(v(t, "1.0.0"))
	b := CompatibleWith(v(t, "1.2.0"))
	c := Exactly(v(t, "1.5.0"))

	specs := []VersionSpecifier{a, b, c, Any(), Empty(), GitReference("main")}

	for _, x := range specs {
		for _, y := range specs {
			got1 := x.Intersect(y)
			got2 := y.Intersect(x)
			if got1.String() != got2.String() {
				t.Fatalf("intersect not commutative: %s ∩ %s = %s, but %s ∩ %s = %s", x, y, got1, y, x, got2)
			}
		}
	}

	for _, x := range specs {
		if x.Intersect(Any()).String() != x.String() {
			t.Fatalf("%s ∩ Any != %s (got %s)", x, x, x.Intersect(Any()))
		}
		if !IsEmpty(x.Intersect(Empty())) {
			t.Fatalf("%s ∩ Empty != Empty (got %s)", x, x.Intersect(Empty()))
		}
	}
}

func TestIntersectAssociativity(t *testing.T) {
	a := AtLeast(v(t, "1.0.0"))
	b := CompatibleWith(v(t, "1.2.0"))
	c := AtLeast(v(t, "1.4.0"))

	left := a.Intersect(b).Intersect(c)
	right := a.Intersect(b.Intersect(c))

	if left.String() != right.String() {
		t.Fatalf("intersect not associative: (a∩b)∩c = %s, a∩(b∩c) = %s", left, right)
	}
}

func TestAtLeastIntersectCompatibleWith(t *testing.T) {
	al := AtLeast(v(t, "1.0.0"))
	cw := CompatibleWith(v(t, "1.2.0"))

	got := al.Intersect(cw)
	want := CompatibleWith(v(t, "1.2.0"))
	if got.String() != want.String() {
		t.Fatalf("AtLeast(1.0.0) ∩ CompatibleWith(1.2.0) = %s, want %s", got, want)
	}

	// Different majors: AtLeast(2.0.0) ∩ CompatibleWith(1.2.0) must be Empty
	// because CompatibleWith never crosses a major boundary.
	al2 := AtLeast(v(t, "2.0.0"))
	if !IsEmpty(al2.Intersect(cw)) {
		t.Fatalf("AtLeast(2.0.0) ∩ CompatibleWith(1.2.0) should be Empty, got %s", al2.Intersect(cw))
	}
}

func TestCompatibleWithDifferentMajors(t *testing.T) {
	a := CompatibleWith(v(t, "1.0.0"))
	b := CompatibleWith(v(t, "2.0.0"))
	if !IsEmpty(a.Intersect(b)) {
		t.Fatalf("CompatibleWith(1.x) ∩ CompatibleWith(2.x) should be Empty")
	}
}

func TestExactlyMatching(t *testing.T) {
	e := Exactly(v(t, "1.1.0"))
	compat := CompatibleWith(v(t, "1.0.0"))

	got := e.Intersect(compat)
	if got.String() != e.String() {
		t.Fatalf("Exactly(1.1.0) ∩ CompatibleWith(1.0.0) = %s, want %s", got, e)
	}

	outside := Exactly(v(t, "2.0.0"))
	if !IsEmpty(outside.Intersect(compat)) {
		t.Fatalf("Exactly(2.0.0) ∩ CompatibleWith(1.0.0) should be Empty")
	}
}

func TestGitReferenceIntersect(t *testing.T) {
	r1 := GitReference("main")
	r2 := GitReference("main")
	r3 := GitReference("develop")

	if !IsEmpty(r1.Intersect(r3)) {
		t.Fatalf("distinct git refs should not intersect")
	}
	if r1.Intersect(r2).String() != r1.String() {
		t.Fatalf("identical git refs should intersect to themselves")
	}
	if r1.Intersect(Any()).String() != r1.String() {
		t.Fatalf("git ref ∩ Any should be the git ref")
	}
	if !IsEmpty(r1.Intersect(AtLeast(v(t, "1.0.0")))) {
		t.Fatalf("git ref should not intersect a version-set specifier")
	}
}

func TestMatchesNonParseablePinnedVersion(t *testing.T) {
	branch := ParsePinnedBranchForTest("feature/x")
	if !Any().Matches(branch) {
		t.Fatalf("Any() must match every pinned version, including non-semver ones")
	}
	if AtLeast(v(t, "1.0.0")).Matches(branch) {
		t.Fatalf("AtLeast must not match a non-parseable pinned version")
	}
	if !GitReference("feature/x").Matches(branch) {
		t.Fatalf("matching GitReference must match an equal-string pinned version")
	}
}

// ParsePinnedBranchForTest is a tiny helper kept local to the test file so
// production code doesn't need a constructor for already-opaque strings.
func ParsePinnedBranchForTest(s string) PinnedVersion { return PinnedVersion(s) }
