package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"organograma/internal/layout"
)

// layoutRecord is one entry of the input file.
type layoutRecord struct {
	ID         string `json:"id"`
	SuperiorID string `json:"superior_id"`
	Rank       string `json:"rank"`
	Name       string `json:"name"`
	Function   string `json:"function"`
	Sector     string `json:"sector"`
}

func newLayoutCmd() *cobra.Command {
	var (
		file string
		opts layout.Options
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Lay out a JSON file of personnel records and print nodes and edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runLayout(in, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Records file, - for stdin")
	cmd.Flags().Float64Var(&opts.RootSpacing, "root-spacing", layout.DefaultRootSpacing, "Horizontal distance between roots")
	cmd.Flags().Float64Var(&opts.SiblingSpacing, "sibling-spacing", layout.DefaultSiblingSpacing, "Horizontal distance between siblings")
	cmd.Flags().Float64Var(&opts.LevelHeight, "level-height", layout.DefaultLevelHeight, "Vertical distance between levels")
	return cmd
}

func runLayout(in io.Reader, out io.Writer, opts layout.Options) error {
	var input []layoutRecord
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}

	records := make([]layout.Record, len(input))
	for i, r := range input {
		records[i] = layout.Record{
			ID:         r.ID,
			SuperiorID: r.SuperiorID,
			Label:      layout.Label{Rank: r.Rank, Name: r.Name, Function: r.Function, Sector: r.Sector},
		}
	}

	result, err := layout.ComputeWithOptions(records, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
