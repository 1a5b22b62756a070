package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcfg "github.com/m5stack/m5doc/internal/config"
	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/logger"
	"github.com/m5stack/m5doc/internal/vikingkb"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "m5doc",
	Short: "m5doc - M5Stack documentation knowledge search over MCP",
	Long: `m5doc exposes the M5Stack product knowledge base as a knowledge_search
MCP tool. Queries are planned into one or two knowledge base searches whose
snippets are merged into a single reference answer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML credentials file (overrides "+appcfg.FileEnv+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadEnvFile loads path into the environment. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadConfig() (*appcfg.Config, error) {
	return appcfg.LoadWithFile(configFilePath())
}

// configFilePath prefers --config over M5DOC_CONFIG_FILE
func configFilePath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv(appcfg.FileEnv)
}

func newLogger(cfg *appcfg.Config) (*zap.Logger, error) {
	log, err := logger.NewLogger(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// newKnowledgeService wires the knowledge base client into a search service
func newKnowledgeService(cfg *appcfg.Config, log *zap.Logger) (*knowledge.Service, error) {
	kbConfig, err := vikingkb.NewConfigFromTypes(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base config: %w", err)
	}
	if err := kbConfig.Validate(); err != nil {
		return nil, fmt.Errorf("knowledge base config validation failed: %w", err)
	}

	client, err := vikingkb.NewClient(kbConfig, vikingkb.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base client: %w", err)
	}

	return knowledge.NewService(client, log), nil
}
