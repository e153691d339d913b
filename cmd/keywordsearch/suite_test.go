package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testMovies = `{"movies": [
	{"id": 1, "title": "Brave", "description": "A princess with bow and arrow"},
	{"id": 2, "title": "Cars", "description": "Racing cars in a fast world"},
	{"id": 3, "title": "Cars 2", "description": "Cars race around the world"},
	{"id": 4, "title": "Ratatouille", "description": "A rat cooks in Paris"}
]}`

// writeTestConfig lays out a corpus, a stopword list and a config file
// pointing at them in a temp dir and returns the config path.
func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"movies.json":   testMovies,
		"stopwords.txt": "a\nand\nin\nwith\nthe\n",
		"config.yaml": fmt.Sprintf(`indexer:
  dataDir: %s
  backend: %s
  codec: cbor
  compress: true
corpus:
  source: file
  moviesPath: %s
  stopwordsPath: %s
logging:
  level: error
`, filepath.Join(dir, "index"), backend, filepath.Join(dir, "movies.json"), filepath.Join(dir, "stopwords.txt")),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "config.yaml")
}

// executeCommand executes a CLI command with the given args and returns the output and error.
func executeCommand(args []string) (string, error) {
	defer resetCmdArgs()

	buf := new(bytes.Buffer)
	cmd := rootCmd
	cmd.SetArgs(args)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()
	return buf.String(), err
}

// resetCmdArgs restores every flag to its default so tests do not leak
// values or Changed state into each other.
func resetCmdArgs() {
	rootArgs = rootFlags{}
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		resetFlags := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(resetFlags)
		c.PersistentFlags().VisitAll(resetFlags)
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}
