package main

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stepwise-run/stepwise/internal/config"
)

var (
	verbose bool
	debug   bool
	logDir  string

	logFile *os.File

	// runID identifies this invocation in log output and default log
	// file names; generated once at startup.
	runID string
)

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "Run, document, and build images for pipeline recipes",
	Long: `stepwise executes recipes defined in the stepwise configuration tree
format: a document of named cabs (external tool wrappers) and recipes
(ordered workflows of steps), with substitution, aliasing, and a small
formula language tying them together.

  stepwise run <file> <recipe> [params...]   Execute a recipe
  stepwise doc <file> <recipe>               Print a recipe's documentation
  stepwise build <file> <recipe>             Build every cab image a recipe references`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(0)

		config.Verbose = verbose
		config.Debug = debug

		if logFileName := os.Getenv("STIMELA_LOG_FILE"); logFileName != "" {
			f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err == nil {
				logFile = f
				log.SetOutput(f)
				log.Printf("[INFO] run %s started at %s\n", runID, time.Now().Format(time.RFC3339))
			} else {
				log.Printf("[WARN] failed to open log file %q: %v; continuing with stderr logging\n", logFileName, err)
			}
		}

		config.DebugLog("run id %s, backend %s", runID, backendFlag)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	runID = uuid.NewString()
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory to write the run's log file into")
}

// Execute runs the root command, closing any opened log file on exit.
func Execute() {
	defer func() {
		if logFile != nil {
			log.Printf("[INFO] run %s ended at %s\n", runID, time.Now().Format(time.RFC3339))
			logFile.Sync()
			logFile.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
