package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lexanalyzer/metrics"
	"lexanalyzer/service"
	"lexanalyzer/types"
)

var analyzeFlags struct {
	file  string
	name  string
	kb    string
	base  bool
	model string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one contract file and print the result as JSON",
	Example: `  lexanalyzer analyze --file contract.pdf
  lexanalyzer analyze --file lease.txt --name "Office Lease" --base`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFlags.file, "file", "f", "", "contract file (.pdf, .txt, .md)")
	f.StringVar(&analyzeFlags.name, "name", "", "contract name (default: file name)")
	f.StringVar(&analyzeFlags.kb, "kb", "", "knowledge base id")
	f.BoolVar(&analyzeFlags.base, "base", false, "use the base model instead of the fine-tuned one")
	f.StringVar(&analyzeFlags.model, "model", "", "explicit model name")
	_ = analyzeCmd.MarkFlagRequired("file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uploader, err := service.NewUploadService(ctx)
	if err != nil {
		return err
	}
	text, err := uploader.LoadFile(ctx, analyzeFlags.file)
	if err != nil {
		return err
	}

	m := metrics.NewDefault()
	b, err := newBackend(ctx, cfg, m, false)
	if err != nil {
		return err
	}
	defer b.Close()

	name := analyzeFlags.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(analyzeFlags.file), filepath.Ext(analyzeFlags.file))
	}
	finetuned := !analyzeFlags.base
	res := service.NewAnalysisService(b.analyzer, nil, m).Analyze(ctx, &types.AnalyzeRequest{
		ContractText:    text,
		ContractName:    name,
		KnowledgeBaseID: analyzeFlags.kb,
		UseFinetuned:    &finetuned,
		ModelName:       analyzeFlags.model,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Status == types.RunError {
		return fmt.Errorf("analysis failed: %s", res.Error)
	}
	return nil
}
