package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilkit/polytile/sched"
)

const jacobiYAML = `name: jacobi1d
statements:
  - name: S
    dims: [t, i]
    bounds: [[0, 7], [0, 15]]
    body: "A[t+1][i] = A[t][i-1] + A[t][i+1];"
dependences:
  flow:
    - {source: S, target: S, offset: [1, -1]}
    - {source: S, target: S, offset: [1, 1]}
tile:
  sizes: [4, 4]
  strategy: plain
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestGenerateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jacobi1d.yaml")
	require.NoError(t, os.WriteFile(in, []byte(jacobiYAML), 0o644))

	out, err := runCLI(t, "generate", in)
	require.NoError(t, err)
	assert.Contains(t, out, "jacobi1d.gen.c")

	code, err := os.ReadFile(filepath.Join(dir, "jacobi1d.gen.c"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "#define floord")
	assert.Contains(t, string(code), "#pragma omp parallel for")
	assert.Contains(t, string(code), "A[(c0+c2)+1][(c1+c3)]")
}

func TestGenerateStrategyFlagOverride(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "stencil.yaml")
	yamlText := strings.Replace(jacobiYAML,
		"    - {source: S, target: S, offset: [1, 1]}\n", "", 1)
	require.NoError(t, os.WriteFile(in, []byte(yamlText), 0o644))

	_, err := runCLI(t, "generate", in, "--strategy", "split", "-o", filepath.Join(dir, "out.c"))
	require.NoError(t, err)

	code, err := os.ReadFile(filepath.Join(dir, "out.c"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(code), "#pragma omp parallel for"),
		"split tiling should produce one parallel loop per phase")
}

func TestGenerateRejectsUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(in, []byte(jacobiYAML), 0o644))
	_, err := runCLI(t, "generate", in, "--strategy", "diamond")
	require.Error(t, err)
}

func TestParseScopFileStrict(t *testing.T) {
	_, err := parseScopFile([]byte("name: x\nstatments: []\n"))
	require.Error(t, err, "misspelled keys must be rejected")
}

func TestToScop(t *testing.T) {
	sf, err := parseScopFile([]byte(jacobiYAML))
	require.NoError(t, err)
	scop, cfg, err := sf.toScop()
	require.NoError(t, err)

	require.Len(t, scop.Statements, 1)
	assert.Equal(t, "S", scop.Statements[0].Name)
	assert.Equal(t, [][2]int64{{0, 7}, {0, 15}}, scop.Statements[0].Bounds)
	require.Len(t, scop.Dependences, 2)
	assert.Equal(t, sched.DepFlow, scop.Dependences[0].Kind)
	assert.Equal(t, []int64{4, 4}, cfg.TileSizes)
	assert.Equal(t, sched.Plain, cfg.Strategy)
}

func TestToScopRejectsBadBounds(t *testing.T) {
	sf := scopFile{Statements: []statementYAML{{
		Name: "S", Dims: []string{"i"}, Bounds: [][]int64{{0, 1, 2}},
	}}}
	_, _, err := sf.toScop()
	require.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "foo.gen.c", outputPath("foo.yaml", ""))
	assert.Equal(t, "dir/foo.gen.c", outputPath("dir/foo.yaml", ""))
	assert.Equal(t, "bar.c", outputPath("foo.yaml", "bar.c"))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "polytile "+sched.Version)
	assert.Contains(t, out, "split")
}
