package aggregate

import (
	"reflect"
	"sort"
	"testing"

	"github.com/mprinc/snowpack/internal/alias"
	"github.com/mprinc/snowpack/internal/specifier"
)

func specs(ts []specifier.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Specifier
	}
	sort.Strings(out)
	return out
}

func TestAggregateUnionsThreeSources(t *testing.T) {
	src := Sources{
		Scanned:            []specifier.Target{{Specifier: "react", Default: true}},
		KnownEntrypoints:   []string{"react-dom"},
		RemoteDependencies: []string{"lodash"},
	}
	got := Aggregate(src, nil, nil)
	if want := []string{"lodash", "react", "react-dom"}; !reflect.DeepEqual(specs(got), want) {
		t.Errorf("Aggregate() specs = %v, want %v", specs(got), want)
	}
}

func TestAggregateExternalFiltered(t *testing.T) {
	// Concrete scenario 5 from §8: externalized package is filtered
	// during aggregation.
	src := Sources{Scanned: []specifier.Target{{Specifier: "react", Default: true}, {Specifier: "react-dom/client", All: true}}}
	got := Aggregate(src, nil, []string{"react", "react-dom"})
	if len(got) != 0 {
		t.Errorf("Aggregate() = %v, want empty (react and react-dom/client both externalized)", got)
	}
}

func TestAggregatePackageAliasRewrite(t *testing.T) {
	src := Sources{Scanned: []specifier.Target{{Specifier: "react", Default: true}}}
	got := Aggregate(src, []alias.Entry{alias.New("react", "preact/compat")}, nil)
	if len(got) != 1 || got[0].Specifier != "preact/compat" {
		t.Errorf("Aggregate() = %+v, want rewritten to preact/compat", got)
	}
}

func TestAggregatePathAliasExcluded(t *testing.T) {
	src := Sources{Scanned: []specifier.Target{{Specifier: "lodash", All: true}}}
	got := Aggregate(src, []alias.Entry{alias.New("lodash", "./shims/lodash.js")}, nil)
	if len(got) != 0 {
		t.Errorf("Aggregate() = %v, want empty (path alias excludes target)", got)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	src := Sources{Scanned: []specifier.Target{{Specifier: "react", Default: true}, {Specifier: "react", Named: []string{"useState"}}}}
	once := Aggregate(src, nil, nil)
	twice := Aggregate(Sources{Scanned: once}, nil, nil)
	for i := range once {
		sort.Strings(once[i].Named)
	}
	for i := range twice {
		sort.Strings(twice[i].Named)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("aggregation not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestAggregateOrderIndependentOfAliasVsExternalWhenAliasTargetExternalized(t *testing.T) {
	// Alias rewriting composed with external-prefix filtering is
	// order-independent when the alias target is itself externalized (§8).
	src := Sources{Scanned: []specifier.Target{{Specifier: "react", Default: true}}}
	aliases := []alias.Entry{alias.New("react", "preact")}
	got := Aggregate(src, aliases, []string{"preact"})
	if len(got) != 0 {
		t.Errorf("Aggregate() = %v, want empty (alias target is externalized)", got)
	}
}
