// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

func TestNestedTableExtraction(t *testing.T) {
	rows := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, fmt.Sprintf(
			`{"name":"pod-%d","phase":"p%d","containers":[`+
				`{"cname":"app","image":"nginx:%d"},{"cname":"sidecar","image":"envoy:%d"}]}`, i, i, i, i))
	}
	tree := mustParse(t, "["+strings.Join(rows, ",")+"]")
	out := CondenseValue(tree, DefaultHeuristics())

	assert.Contains(t, out, "# root", "parent table rendered")
	assert.Contains(t, out, "# root.containers", "nested array lifts out as a sub-table")
	assert.Contains(t, out, "_parent.name", "sub-table rows are back-referenced by parent identity")
	assert.Contains(t, out, "pod-1", "parent identity appears in sub-table rows")
}

func TestExtractionIsSingleLevel(t *testing.T) {
	rows := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		rows = append(rows, fmt.Sprintf(
			`{"name":"pod-%d","phase":"p%d","containers":[`+
				`{"cname":"a%d","ports":[{"port":80,"proto":"tcp"},{"port":443,"proto":"tcp"}]},`+
				`{"cname":"b%d","ports":[{"port":9090,"proto":"tcp"},{"port":9091,"proto":"udp"}]}]}`, i, i, i, i))
	}
	tree := mustParse(t, "["+strings.Join(rows, ",")+"]")
	out := CondenseValue(tree, DefaultHeuristics())

	assert.Contains(t, out, "# root.containers")
	assert.NotContains(t, out, "# root.containers.ports", "sub-sub-tables are not extracted")
}

func TestNonTabularObjectArrayRendersPerItem(t *testing.T) {
	tree := mustParse(t, `[{"a":1},{"a":2}]`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Equal(t, "root[0].a: 1\nroot[1].a: 2", out)
}

func TestScalarArrayRendersAsJSONLine(t *testing.T) {
	tree := mustParse(t, `{"versions":[1,2,3],"name":"api"}`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Equal(t, "name: api\nversions: [1,2,3]", out)
}

func TestEmptyArrayRendersAsJSONLine(t *testing.T) {
	tree := mustParse(t, `{"items":[],"name":"api"}`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Contains(t, out, "items: []")
}

func TestScalarRootRenders(t *testing.T) {
	assert.Equal(t, "root: 5", condenseTree(value.IntOf(5), nil))
}

func TestDeprecatedAliasesForward(t *testing.T) {
	tree := mustParse(t, `[{"name":"a","v":1},{"name":"b","v":2}]`)
	h := DefaultHeuristics()

	assert.Equal(t, CondenseValue(tree, h), CondenseJSON(tree, h))
	assert.Equal(t, EncodeTOON(tree), TOONEncodeJSON(tree))
}

func TestCondenseObjectWithMultipleTables(t *testing.T) {
	tree := mustParse(t, `{
		"pods":[{"name":"a","v":1},{"name":"b","v":2}],
		"nodes":[{"name":"n1","cpu":4},{"name":"n2","cpu":8}]
	}`)
	out := CondenseValue(tree, DefaultHeuristics())

	podsIdx := strings.Index(out, "# pods")
	nodesIdx := strings.Index(out, "# nodes")
	require.GreaterOrEqual(t, podsIdx, 0)
	require.GreaterOrEqual(t, nodesIdx, 0)
	assert.Less(t, podsIdx, nodesIdx, "tables render in source order")
	assert.Contains(t, out, "\n\n# nodes", "table blocks are separated by a blank line")
}
