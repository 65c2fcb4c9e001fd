package filter

import "testing"

func TestReviewableExtension(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"src/app.cs", true},
		{"SRC/APP.CS", true},
		{"main.go", true},
		{"image.png", false},
		{"archive.zip", false},
		{"Dockerfile", true},
		{"deploy/Makefile", true},
		{"binary", false},
		{"config.yaml", true},
	}
	for _, tc := range cases {
		if got := ReviewableExtension(tc.path); got != tc.want {
			t.Errorf("ReviewableExtension(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestExcludedMatchesNameAndPath(t *testing.T) {
	exclusions := CompileExclusions([]string{"*.min.js", "vendor/*", "generated?.cs"})

	cases := []struct {
		path string
		want bool
	}{
		{"dist/app.min.js", true},
		{"dist/App.MIN.JS", true},
		{"dist/app.js", false},
		{"vendor/lib.go", true},
		{"src/vendor.go", false},
		{"generated1.cs", true},
		{"generated12.cs", false},
	}
	for _, tc := range cases {
		if got := Excluded(tc.path, exclusions); got != tc.want {
			t.Errorf("Excluded(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestCompileExclusionsSkipsBlank(t *testing.T) {
	if got := len(CompileExclusions([]string{"", "  ", "*.txt"})); got != 1 {
		t.Fatalf("expected 1 compiled exclusion, got %d", got)
	}
}
