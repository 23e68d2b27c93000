package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/aivis/internal/domain/event"
	"github.com/kailas-cloud/aivis/internal/domain/query"
	"github.com/kailas-cloud/aivis/internal/usecase/orchestration"
)

var (
	runDomainID  int64
	runVersionID int64
	runItemsPath string
)

// itemsFile is the --items document: either a bare list of items or an object with items.
type itemsFile struct {
	Items     []query.Item `yaml:"items"`
	VersionID *int64       `yaml:"versionId"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one orchestration and print events as JSON lines",
	Long: "Loads keyword phrases from a YAML or JSON file, queries every configured model and writes " +
		"progress, result, stats, error and complete events to stdout, one JSON object per line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := readItems(runItemsPath)
		if err != nil {
			return err
		}
		req := orchestration.RunRequest{DomainID: runDomainID, VersionID: f.VersionID, Items: f.Items}
		if cmd.Flags().Changed("version-id") {
			req.VersionID = &runVersionID
		}

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.orchestrator.Run(ctx, req, event.NewJSONLines(cmd.OutOrStdout()))
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if summary.Failed > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d tasks failed\n", summary.Failed, summary.TotalTasks)
		}
		return nil
	},
}

func readItems(path string) (itemsFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return itemsFile{}, fmt.Errorf("read items: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return itemsFile{}, fmt.Errorf("parse items: %w", err)
	}
	if len(doc.Content) == 0 {
		return itemsFile{}, errors.New("items file is empty")
	}

	var f itemsFile
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		err = root.Decode(&f.Items)
	} else {
		err = root.Decode(&f)
	}
	if err != nil {
		return itemsFile{}, fmt.Errorf("decode items: %w", err)
	}
	return f, nil
}

func init() {
	runCmd.Flags().Int64Var(&runDomainID, "domain", 0, "domain ID to query about")
	runCmd.Flags().Int64Var(&runVersionID, "version-id", 0, "scope keyword lookups to this version")
	runCmd.Flags().StringVar(&runItemsPath, "items", "", "YAML or JSON file with [{keyword, phrases}]")
	_ = runCmd.MarkFlagRequired("domain")
	_ = runCmd.MarkFlagRequired("items")
	rootCmd.AddCommand(runCmd)
}
