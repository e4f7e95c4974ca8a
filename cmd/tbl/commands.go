package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/formstate"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/logging"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/render"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/session"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/treedef"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition>...",
	Short: "Check tree definition files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			def, err := treedef.Load(path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (tree %s, %d nodes)\n", path, def.TreeID, len(def.Flat()))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d definitions invalid", failed, len(args))
		}
		return nil
	},
}

var refsCmd = &cobra.Command{
	Use:   "refs <definition> <node-id>",
	Short: "List the shared references reachable from a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, def, err := loadService(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		refs, err := svc.SharedReferences(cmd.Context(), def.TreeID, args[1])
		if err != nil {
			return err
		}
		for _, id := range refs {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var (
	valuesPath string
	showHidden bool
)

var renderCmd = &cobra.Command{
	Use:   "render <definition>",
	Short: "Render a form definition against a set of values",
	Long: `render runs the field pipeline on every section of the definition and prints
the result as JSON. Values come from a YAML or JSON object of form keys.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, def, err := loadService(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		values := types.FormValues{}
		if valuesPath != "" {
			if values, err = readValues(valuesPath); err != nil {
				return err
			}
		}
		sections, err := svc.RenderTree(cmd.Context(), def.TreeID, values)
		if err != nil {
			return err
		}
		if !showHidden {
			sections = render.Filter(sections)
		}
		return writeJSON(cmd.OutOrStdout(), sections)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&valuesPath, "values", "f", "", "YAML or JSON file of form values")
	renderCmd.Flags().BoolVar(&showHidden, "all", false, "include invisible sections and fields")
}

// loadService imports one definition into an in-memory engine.
func loadService(ctx context.Context, path string) (*engine.Service, treedef.Definition, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := logging.New(logLevel)
	if err != nil {
		return nil, treedef.Definition{}, err
	}
	def, err := treedef.Load(path)
	if err != nil {
		return nil, treedef.Definition{}, err
	}
	svc := engine.New(nodestore.NewMemoryStore(), formstate.NewMemoryStore(), session.NewManager(0, 0), engine.Options{
		Logger: log.Named("engine"),
	})
	if _, err := svc.ImportTree(ctx, def.TreeID, def.Nodes); err != nil {
		return nil, treedef.Definition{}, err
	}
	log.Debug("definition loaded", zap.String("path", path), zap.String("tree_id", def.TreeID))
	return svc, def, nil
}

// readValues decodes a values file. YAML is a superset of JSON, so one
// decoder serves both.
func readValues(path string) (types.FormValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading values: %w", err)
	}
	values := types.FormValues{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding values %s: %w", path, err)
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
