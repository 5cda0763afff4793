package output_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/temirov/fusion/internal/content"
	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/types"
)

func lookupFrom(entries ...content.Entry) output.Lookup {
	byPath := make(map[string]content.Entry, len(entries))
	for _, entry := range entries {
		byPath[entry.Path] = entry
	}
	return func(path string) (content.Entry, bool) {
		entry, found := byPath[path]
		return entry, found
	}
}

// TestRenderExportSingleFileRelative verifies the exact block format.
func TestRenderExportSingleFileRelative(testingInstance *testing.T) {
	lookup := lookupFrom(content.Entry{Path: "/root/a.txt", Kind: types.ContentText, Text: "X"})
	actual := output.RenderExport([]string{"/root/a.txt"}, lookup, "/root", types.PathPolicyRelative)
	expected := "### START OF FILE: a.txt ###\nX\n### END OF FILE: a.txt ###\n\n"
	if actual != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, actual)
	}
}

// TestRenderExportSkipsMissingAndUnavailable verifies block order and skipping rules.
func TestRenderExportSkipsMissingAndUnavailable(testingInstance *testing.T) {
	lookup := lookupFrom(
		content.Entry{Path: "/root/a.txt", Kind: types.ContentText, Text: "alpha"},
		content.BinaryEntry("/root/b.png", time.Time{}),
		content.UnavailableEntry("/root/c.txt", time.Time{}),
	)
	paths := []string{"/root/a.txt", "/root/b.png", "/root/c.txt", "/root/d.txt"}
	actual := output.RenderExport(paths, lookup, "/root", types.PathPolicyFull)
	expected := "### START OF FILE: /root/a.txt ###\nalpha\n### END OF FILE: /root/a.txt ###\n\n" +
		"### START OF FILE: /root/b.png ###\nBinary file skipped: b.png\n### END OF FILE: /root/b.png ###\n\n"
	if actual != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, actual)
	}
	if empty := output.RenderExport(nil, lookup, "/root", types.PathPolicyFull); empty != "" {
		testingInstance.Fatalf("expected empty export, got %q", empty)
	}
}

// TestDisplayPath verifies path policies.
func TestDisplayPath(testingInstance *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "project")
	nested := filepath.Join(root, "src", "main.go")
	sibling := filepath.Join(string(filepath.Separator), "work", "projectx", "a.go")
	testCases := []struct {
		name     string
		path     string
		policy   types.PathPolicy
		expected string
	}{
		{name: "full keeps absolute", path: nested, policy: types.PathPolicyFull, expected: nested},
		{name: "relative strips root", path: nested, policy: types.PathPolicyRelative, expected: filepath.Join("src", "main.go")},
		{name: "relative leaves unrelated path", path: sibling, policy: types.PathPolicyRelative, expected: sibling},
	}
	for _, testCase := range testCases {
		if actual := output.DisplayPath(testCase.path, root, testCase.policy); actual != testCase.expected {
			testingInstance.Errorf("%s: expected %s, got %s", testCase.name, testCase.expected, actual)
		}
	}
}

func sampleTree() *types.Node {
	return &types.Node{Path: "/p", IsDirectory: true, Children: []*types.Node{
		{Path: "/p/zeta.txt"},
		{Path: "/p/Alpha.txt"},
		{Path: "/p/src", IsDirectory: true, Children: []*types.Node{
			{Path: "/p/src/main.go"},
		}},
	}}
}

// TestWriteTree verifies connector layout and directory-first ordering.
func TestWriteTree(testingInstance *testing.T) {
	var builder strings.Builder
	output.WriteTree(&builder, sampleTree(), nil)
	expected := "/p\n" +
		"├── src/\n" +
		"│   └── main.go\n" +
		"├── Alpha.txt\n" +
		"└── zeta.txt\n"
	if builder.String() != expected {
		testingInstance.Fatalf("expected\n%s\ngot\n%s", expected, builder.String())
	}

	builder.Reset()
	output.WriteTree(&builder, nil, nil)
	if builder.Len() != 0 {
		testingInstance.Fatalf("expected no output for nil tree")
	}
}

// TestWriteTreeMarker verifies marker prefixes.
func TestWriteTreeMarker(testingInstance *testing.T) {
	var builder strings.Builder
	output.WriteTree(&builder, &types.Node{Path: "/p", IsDirectory: true, Children: []*types.Node{{Path: "/p/a"}}}, func(node *types.Node) string {
		if node.IsDirectory {
			return "[-] "
		}
		return "[x] "
	})
	expected := "[-] /p\n└── [x] a\n"
	if builder.String() != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, builder.String())
	}
}

// TestRenderTreeJSON verifies JSON rendering uses presentation order.
func TestRenderTreeJSON(testingInstance *testing.T) {
	rendered, err := output.RenderTree(sampleTree(), output.FormatJSON, nil)
	if err != nil {
		testingInstance.Fatalf("RenderTree error: %v", err)
	}
	var decoded types.Node
	if err := json.Unmarshal([]byte(rendered), &decoded); err != nil {
		testingInstance.Fatalf("decode: %v", err)
	}
	if len(decoded.Children) != 3 || decoded.Children[0].Path != "/p/src" || decoded.Children[1].Path != "/p/Alpha.txt" {
		testingInstance.Fatalf("unexpected order %+v", decoded.Children)
	}
	if _, err := output.RenderTree(sampleTree(), "yaml", nil); err == nil {
		testingInstance.Fatalf("expected error for unsupported format")
	}
}

// TestFormatSummaryLine verifies pluralisation and model suffix.
func TestFormatSummaryLine(testingInstance *testing.T) {
	if line := output.FormatSummaryLine(1, 100, ""); line != "Summary: 1 file, ~100 tokens" {
		testingInstance.Fatalf("unexpected line %q", line)
	}
	if line := output.FormatSummaryLine(3, 200, "gpt-4o"); line != "Summary: 3 files, ~200 tokens (model: gpt-4o)" {
		testingInstance.Fatalf("unexpected line %q", line)
	}
	if line := output.FormatTreeSummaryLine(1); line != "Summary: 1 file" {
		testingInstance.Fatalf("unexpected line %q", line)
	}
	if line := output.FormatTreeSummaryLine(0); line != "Summary: 0 files" {
		testingInstance.Fatalf("unexpected line %q", line)
	}
}
