package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/creditparse-cli/internal/pipeline"
)

var (
	extractType   string
	extractOutput string
	extractPretty bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract a structured record from one credit report document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		declared := extractType
		if declared == "" {
			declared = mimetype.Detect(data).String()
		}

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		result, err := p.Process(cmd.Context(), data, declared, path)
		if err != nil {
			return err
		}

		zap.L().Info("extraction complete",
			zap.String("file", path),
			zap.String("method", result.ProcessingMethod),
			zap.Float64("overall_confidence", result.OverallConfidence))

		var encoded []byte
		if extractPretty {
			encoded, err = json.MarshalIndent(result, "", "  ")
		} else {
			encoded, err = json.Marshal(result)
		}
		if err != nil {
			return eris.Wrap(err, "encode result")
		}

		if extractOutput != "" {
			return os.WriteFile(extractOutput, append(encoded, '\n'), 0o644)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", "", "declared MIME type (default: detected from content)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the result JSON to a file instead of stdout")
	extractCmd.Flags().BoolVar(&extractPretty, "pretty", false, "indent the result JSON")
	rootCmd.AddCommand(extractCmd)
}
