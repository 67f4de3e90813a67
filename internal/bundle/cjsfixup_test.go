package bundle

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestAddCJSNamedExportsToCacheSimpleWrapper(t *testing.T) {
	depCache := map[string][]byte{
		"entry.js": []byte(`var require_foo = __commonJS({
  "foo.js"(exports, module) {
    exports.bar = 1;
    exports.baz = 2;
  }
});
export default require_foo();
`),
	}
	addCJSNamedExportsToCache(depCache, nil, nil)
	code := string(depCache["entry.js"])
	if !strings.Contains(code, "export const bar = __cjs_exports.bar;") {
		t.Errorf("output missing named export for bar:\n%s", code)
	}
	if !strings.Contains(code, "export const baz = __cjs_exports.baz;") {
		t.Errorf("output missing named export for baz:\n%s", code)
	}
	if !strings.Contains(code, "export default __cjs_exports;") {
		t.Errorf("output missing default export:\n%s", code)
	}
}

func TestAddCJSNamedExportsToCacheDelegationChain(t *testing.T) {
	depCache := map[string][]byte{
		"entry.js": []byte(`var require_impl = __commonJS({
  "impl.js"(exports, module) {
    exports.real = 1;
  }
});
var require_wrapper = __commonJS({
  "wrapper.js"(exports, module) {
    module.exports = require_impl();
  }
});
export default require_wrapper();
`),
	}
	addCJSNamedExportsToCache(depCache, nil, nil)
	code := string(depCache["entry.js"])
	if !strings.Contains(code, "export const real = __cjs_exports.real;") {
		t.Errorf("delegation chain not followed:\n%s", code)
	}
}

func TestAddCJSNamedExportsToCacheKnownExportsTakesPriority(t *testing.T) {
	depCache := map[string][]byte{
		"node_modules/somepkg/entry.js": []byte(`var require_foo = __commonJS({
  "foo.js"(exports, module) {
    exports.regexOnly = 1;
  }
});
export default require_foo();
`),
	}
	known := map[string][]string{"node_modules/somepkg/entry.js": {"fromNode"}}
	addCJSNamedExportsToCache(depCache, known, nil)
	code := string(depCache["node_modules/somepkg/entry.js"])
	if !strings.Contains(code, "export const fromNode = __cjs_exports.fromNode;") {
		t.Errorf("expected Node-detected export to win:\n%s", code)
	}
	if strings.Contains(code, "regexOnly") {
		t.Errorf("regex-detected export should not appear when known exports are present:\n%s", code)
	}
}

func TestAddCJSNamedExportsToCacheWellKnownAllowList(t *testing.T) {
	depCache := map[string][]byte{
		"node_modules/react/entry.js": []byte(`var require_foo = __commonJS({
  "foo.js"(exports, module) {}
});
export default require_foo();
`),
	}
	addCJSNamedExportsToCache(depCache, nil, nil)
	code := string(depCache["node_modules/react/entry.js"])
	if !strings.Contains(code, "useState") {
		t.Errorf("expected well-known react named export useState, got:\n%s", code)
	}
}

func TestAddCJSNamedExportsToCacheConfiguredOverrideWins(t *testing.T) {
	depCache := map[string][]byte{
		"node_modules/react/entry.js": []byte(`var require_foo = __commonJS({
  "foo.js"(exports, module) {}
});
export default require_foo();
`),
	}
	configured := map[string][]string{"react": {"customExport"}}
	addCJSNamedExportsToCache(depCache, nil, configured)
	code := string(depCache["node_modules/react/entry.js"])
	if !strings.Contains(code, "export const customExport = __cjs_exports.customExport;") {
		t.Errorf("expected configured namedExports override, got:\n%s", code)
	}
}

func TestFilterExportNamesDropsReservedAndDunder(t *testing.T) {
	names := []string{"default", "foo", "__esModule", "bar"}
	got := filterExportNames(names)
	sort.Strings(got)
	want := []string{"bar", "foo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterExportNames() = %v, want %v", got, want)
	}
}

func TestFixDynamicRequiresRewritesToStaticImport(t *testing.T) {
	depCache := map[string][]byte{
		"entry.js": []byte(`var x = __require("lodash");
var y = __require("lodash");
var z = __require("react");
`),
	}
	fixDynamicRequires(depCache)
	code := string(depCache["entry.js"])
	if strings.Contains(code, "__require(") {
		t.Errorf("dynamic require not rewritten:\n%s", code)
	}
	if !strings.Contains(code, `import __ext_0 from "lodash";`) && !strings.Contains(code, `import __ext_1 from "lodash";`) {
		t.Errorf("expected static import for lodash:\n%s", code)
	}
	if !strings.Contains(code, `from "react";`) {
		t.Errorf("expected static import for react:\n%s", code)
	}
}

func TestResolveCJSExportsDetectsCycle(t *testing.T) {
	info := map[string]*cjsModuleInfo{
		"require_a": {delegatesTo: "require_b"},
		"require_b": {delegatesTo: "require_a"},
	}
	got := resolveCJSExports(info, "require_a")
	if got != nil {
		t.Errorf("resolveCJSExports() = %v, want nil on cycle", got)
	}
}
