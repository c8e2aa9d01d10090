package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/engine"
	"github.com/mtessier/reactsync/internal/store"
)

// seedDatabase writes a known configuration and returns a config file
// pointing at it.
func seedDatabase(t *testing.T, snap engine.Snapshot) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.SaveSnapshot(context.Background(), snap))
	require.NoError(t, st.Close())

	cfgPath := filepath.Join(dir, "reactsync.yaml")
	cfg := fmt.Sprintf("database: %s\ntoken: test\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}

func exportSnapshot() engine.Snapshot {
	m1 := chat.MessageRef{Server: "s1", Channel: "c1", Message: "m1"}
	m2 := chat.MessageRef{Server: "s1", Channel: "c1", Message: "m2"}
	return engine.Snapshot{
		Bindings: []engine.BindingRecord{
			{Ref: m1, Symbol: "👍", Role: "r1"},
			{Ref: m2, Symbol: "🔥", Role: "r2"},
		},
		Links: []engine.LinkRecord{
			{Server: "s1", Name: "factions", Messages: []chat.MessageRef{m1, m2}},
		},
	}
}

func TestExport_YamlRoundTrips(t *testing.T) {
	cfgPath := seedDatabase(t, exportSnapshot())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"export", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	var doc exportDoc
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))

	require.Len(t, doc.Bindings, 2)
	assert.Equal(t, exportBinding{
		Server: "s1", Channel: "c1", Message: "m1", Symbol: "👍", Role: "r1",
	}, doc.Bindings[0])

	require.Len(t, doc.Links, 1)
	assert.Equal(t, "factions", doc.Links[0].Group)
	assert.Equal(t, []exportMessage{
		{Channel: "c1", Message: "m1"},
		{Channel: "c1", Message: "m2"},
	}, doc.Links[0].Messages)
}

func TestExport_OutputIsDeterministic(t *testing.T) {
	cfgPath := seedDatabase(t, exportSnapshot())

	var first, second bytes.Buffer
	for i, buf := range []*bytes.Buffer{&first, &second} {
		cmd := NewRootCommand()
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs([]string{"export", "--config", cfgPath})
		require.NoError(t, cmd.Execute(), "run %d", i)
	}
	assert.Equal(t, first.String(), second.String())
}

func TestExport_EmptyDatabase(t *testing.T) {
	cfgPath := seedDatabase(t, engine.Snapshot{})

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"export", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	var doc exportDoc
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Empty(t, doc.Bindings)
	assert.Empty(t, doc.Links)
}

func TestExport_JSONFormat(t *testing.T) {
	cfgPath := seedDatabase(t, exportSnapshot())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"export", "--config", cfgPath, "--format", "json"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), `"status":"ok"`)
}
