package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/mcpserver"
	"github.com/m5stack/m5doc/internal/metrics"
)

const defaultSearchQuery = "Module13.2 QRCode 序号10 条码"

var (
	searchQuery      string
	searchNum        int
	searchIsChip     bool
	searchFilterType string
	searchJSON       bool
	searchTimeout    time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one knowledge search and print the merged answer",
	Long: `
Run a single knowledge_search against the configured knowledge base and print
the merged reference text, exactly as the MCP tool would return it.

Examples:
  m5doc search
  m5doc search -q "CoreS3 camera pinout" --num 1 --filter-type product
  m5doc search -q "ESP32-S3 USB OTG" --is-chip --json
`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", defaultSearchQuery, "Text query to search for")
	searchCmd.Flags().IntVarP(&searchNum, "num", "n", 1, "Number of entities the question involves (1-3)")
	searchCmd.Flags().BoolVar(&searchIsChip, "is-chip", true, "Also search chip datasheets")
	searchCmd.Flags().StringVarP(&searchFilterType, "filter-type", "f", knowledge.FilterProduct, "Document type filter: product|product_no_eol|program|arduino|uiflow|esp-idf|esphome")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, `Output {"info": ...} JSON`)
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 30*time.Second, "Overall search timeout")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	service, err := newKnowledgeService(cfg, log)
	if err != nil {
		return err
	}

	store, recorder := openUsageRecorder(cfg, log)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()
	if !knowledge.IsBlankQuery(searchQuery) {
		recorder.RecordInvocation(ctx, metrics.ModeSearch)
	}

	query := knowledge.Query{
		Text:          searchQuery,
		EntityCount:   searchNum,
		NeedsChipDocs: searchIsChip,
		FilterType:    searchFilterType,
	}
	return executeSearch(ctx, service, query, searchJSON, cmd.OutOrStdout())
}

// executeSearch runs q and writes the answer to out
func executeSearch(ctx context.Context, retriever mcpserver.Retriever, q knowledge.Query, asJSON bool, out io.Writer) error {
	if q.EntityCount < 1 {
		q.EntityCount = 1
	}
	if q.FilterType != "" && !knowledge.IsKnownFilterType(q.FilterType) {
		return fmt.Errorf("unknown filter type %q", q.FilterType)
	}

	answer, err := retriever.Retrieve(ctx, q)
	if err != nil {
		return fmt.Errorf("knowledge search failed: %w", err)
	}

	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(knowledge.Answer{Info: answer})
	}

	_, err = fmt.Fprintln(out, answer)
	return err
}
