package cmd

import (
	"flag"
	"strings"
	"testing"

	"github.com/etnz/holdings/docs"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// examples returns the command lines of the bash blocks of a markdown document.
func examples(t *testing.T, md string) []string {
	t.Helper()
	src := []byte(md)
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var lines []string
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok || string(fcb.Language(src)) != "bash" {
			return ast.WalkContinue, nil
		}
		for i := 0; i < fcb.Lines().Len(); i++ {
			line := fcb.Lines().At(i)
			lines = append(lines, strings.TrimSpace(string(line.Value(src))))
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return lines
}

// TestTopicExamples checks that the manual only uses existing commands and flags.
func TestTopicExamples(t *testing.T) {
	byName := make(map[string]subcommands.Command)
	for _, e := range Commands {
		byName[e.Command.Name()] = e.Command
	}

	content, err := docs.Topics("*")
	require.NoError(t, err)
	lines := examples(t, content)
	require.NotEmpty(t, lines)

	for _, line := range lines {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, line)
		require.Equal(t, "hld", fields[0], line)
		c, ok := byName[fields[1]]
		require.True(t, ok, "unknown command in %q", line)

		f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(f)
		for _, field := range fields[2:] {
			if name, ok := strings.CutPrefix(field, "-"); ok && !isNumber(name) {
				assert.NotNil(t, f.Lookup(name), "unknown flag %q in %q", name, line)
			}
		}
	}
}

func isNumber(s string) bool {
	return strings.Trim(s, "0123456789.") == ""
}

func TestTopic(t *testing.T) {
	setup(t, "json")
	out, status := run(t, "topic")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "# hld user manual")

	out, status = run(t, "topic", "market", "ledger")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "# Market")
	assert.Contains(t, out, "# Ledger")

	_, status = run(t, "topic", "nothing")
	assert.Equal(t, subcommands.ExitFailure, status)
}
