package alias

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		to   string
		want Kind
	}{
		{"preact/compat", KindPackage},
		{"./shims/react.js", KindPath},
		{"../shared/react.js", KindPath},
		{"/abs/react.js", KindPath},
		{"https://cdn.example.com/react.js", KindURL},
	}
	for _, tt := range tests {
		if got := Classify(tt.to); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.to, got, tt.want)
		}
	}
}

func TestRewritePackageOnly(t *testing.T) {
	entries := []Entry{
		New("react", "preact/compat"),
		New("lodash", "./shims/lodash.js"),
	}
	if got := Rewrite("react", entries); got != "preact/compat" {
		t.Errorf("Rewrite(react) = %q, want preact/compat", got)
	}
	if got := Rewrite("lodash", entries); got != "lodash" {
		t.Errorf("Rewrite(lodash) = %q, want unchanged (path alias doesn't rewrite)", got)
	}
	if got := Rewrite("unaliased", entries); got != "unaliased" {
		t.Errorf("Rewrite(unaliased) = %q, want unchanged", got)
	}
}

func TestExcludesPathAndURLOnly(t *testing.T) {
	entries := []Entry{
		New("react", "preact/compat"),
		New("lodash", "./shims/lodash.js"),
		New("moment", "https://cdn.example.com/moment.js"),
	}
	if Excludes("react", entries) {
		t.Error("Excludes(react) = true, want false (package alias rewrites, doesn't exclude)")
	}
	if !Excludes("lodash", entries) {
		t.Error("Excludes(lodash) = false, want true (path alias excludes)")
	}
	if !Excludes("moment", entries) {
		t.Error("Excludes(moment) = false, want true (url alias excludes)")
	}
}
