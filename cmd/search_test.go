package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	appcfg "github.com/m5stack/m5doc/internal/config"
	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRetriever struct {
	got    knowledge.Query
	answer string
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, q knowledge.Query) (string, error) {
	s.got = q
	return s.answer, s.err
}

func TestSearchFlagDefaults(t *testing.T) {
	flags := searchCmd.Flags()

	query, err := flags.GetString("query")
	require.NoError(t, err)
	assert.Equal(t, "Module13.2 QRCode 序号10 条码", query)

	num, err := flags.GetInt("num")
	require.NoError(t, err)
	assert.Equal(t, 1, num)

	isChip, err := flags.GetBool("is-chip")
	require.NoError(t, err)
	assert.True(t, isChip)

	filterType, err := flags.GetString("filter-type")
	require.NoError(t, err)
	assert.Equal(t, "product", filterType)
}

func TestExecuteSearchPlainText(t *testing.T) {
	retriever := &stubRetriever{answer: "reference text"}
	var out bytes.Buffer

	err := executeSearch(context.Background(), retriever, knowledge.Query{Text: "CoreS3", EntityCount: 0, FilterType: "program"}, false, &out)
	require.NoError(t, err)
	assert.Equal(t, "reference text\n", out.String())
	assert.Equal(t, 1, retriever.got.EntityCount)
	assert.Equal(t, "program", retriever.got.FilterType)
}

func TestExecuteSearchJSON(t *testing.T) {
	retriever := &stubRetriever{answer: "<b>Unit & Hat</b>"}
	var out bytes.Buffer

	require.NoError(t, executeSearch(context.Background(), retriever, knowledge.Query{Text: "q", EntityCount: 1}, true, &out))
	assert.Contains(t, out.String(), "<b>Unit & Hat</b>")

	var answer knowledge.Answer
	require.NoError(t, json.Unmarshal(out.Bytes(), &answer))
	assert.Equal(t, "<b>Unit & Hat</b>", answer.Info)
}

func TestExecuteSearchErrors(t *testing.T) {
	var out bytes.Buffer

	err := executeSearch(context.Background(), &stubRetriever{}, knowledge.Query{Text: "q", EntityCount: 1, FilterType: "datasheet"}, false, &out)
	assert.ErrorContains(t, err, `unknown filter type "datasheet"`)

	err = executeSearch(context.Background(), &stubRetriever{err: errors.New("boom")}, knowledge.Query{Text: "q", EntityCount: 1}, false, &out)
	assert.ErrorContains(t, err, "knowledge search failed: boom")
	assert.Empty(t, out.String())
}

func TestLoadEnvFileIgnoresMissingFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(t.TempDir()+"/missing.env"))
	assert.NoError(t, loadEnvFile(""))
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["search"])
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStats(&out, map[metrics.Mode]int64{metrics.ModeMCP: 7, metrics.ModeSearch: 2}))
	assert.Equal(t, "mcp      7\nsearch   2\ntotal    9\n", out.String())
}

func TestOpenUsageRecorder(t *testing.T) {
	cfg := &appcfg.Config{UsageStatsEnabled: true, UsageStatsPath: filepath.Join(t.TempDir(), "stats.db")}
	store, recorder := openUsageRecorder(cfg, zap.NewNop())
	require.NotNil(t, store)
	defer func() { _ = store.Close() }()

	recorder.RecordInvocation(context.Background(), metrics.ModeSearch)
	total, err := store.TotalByMode(context.Background(), metrics.ModeSearch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	store, recorder = openUsageRecorder(&appcfg.Config{}, zap.NewNop())
	assert.Nil(t, store)
	recorder.RecordInvocation(context.Background(), metrics.ModeSearch)
}

func TestRunStatsWithoutKnowledgeBaseCredentials(t *testing.T) {
	for _, key := range []string{appcfg.FileEnv, "VOLC_ACCESS_KEY", "VOLC_SECRET_KEY", "KNOWLEDGE_BASE_NAME"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "stats.db")
	t.Setenv("USAGE_STATS_ENABLED", "true")
	t.Setenv("USAGE_STATS_PATH", path)

	store, err := metrics.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Increment(context.Background(), metrics.ModeMCP))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)

	require.NoError(t, runStats(cmd, nil))
	assert.Equal(t, "mcp      1\nsearch   0\ntotal    1\n", out.String())
}
