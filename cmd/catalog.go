package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

var catalogFormat string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the pain taxonomy, personas and recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := initCatalog()
		if err != nil {
			return err
		}
		return writeCatalog(cmd.OutOrStdout(), cat, catalogFormat)
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(catalogCmd)
}

type catalogView struct {
	Version         int                 `json:"version" yaml:"version"`
	OpeningQuestion string              `json:"opening_question" yaml:"opening_question"`
	Categories      []taxonomy.Category `json:"categories" yaml:"categories"`
	Personas        []model.Persona     `json:"personas" yaml:"personas"`
	Recipes         []model.Recipe      `json:"recipes" yaml:"recipes"`
}

func newCatalogView(cat *taxonomy.Catalog) catalogView {
	return catalogView{
		Version:         cat.Version(),
		OpeningQuestion: cat.OpeningQuestion(),
		Categories:      cat.Categories(),
		Personas:        cat.ListPersonas(),
		Recipes:         cat.ListRecipes(),
	}
}

func writeCatalog(w io.Writer, cat *taxonomy.Catalog, format string) error {
	view := newCatalogView(cat)
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return eris.Wrap(err, "catalog: encode yaml")
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(view), "catalog: encode json")
	default:
		return eris.Errorf("catalog: unknown format %q", format)
	}
}
