// generate.go implements the 'polytile generate' command.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stencilkit/polytile/sched"
)

// scopFile is the YAML schema for a scop description.
type scopFile struct {
	Name         string          `yaml:"name"`
	Statements   []statementYAML `yaml:"statements"`
	Dependences  depsYAML        `yaml:"dependences"`
	Tile         tileYAML        `yaml:"tile"`
	MinimizeSync bool            `yaml:"minimizeSync"`
}

type statementYAML struct {
	Name   string    `yaml:"name"`
	Dims   []string  `yaml:"dims"`
	Bounds [][]int64 `yaml:"bounds"`
	Body   string    `yaml:"body"`
}

type depYAML struct {
	Source string  `yaml:"source"`
	Target string  `yaml:"target"`
	Offset []int64 `yaml:"offset"`
}

// depsYAML groups dependences by kind. "anti" covers both
// write-after-read and write-after-write dependences.
type depsYAML struct {
	Flow   []depYAML `yaml:"flow"`
	Anti   []depYAML `yaml:"anti"`
	Order  []depYAML `yaml:"order"`
	Forced []depYAML `yaml:"forced"`
}

type tileYAML struct {
	Sizes    []int64 `yaml:"sizes"`
	Strategy string  `yaml:"strategy"`
}

func newGenerateCmd(verbosity *int) *cobra.Command {
	var (
		output   string
		strategy string
		tile     []int64
		minSync  bool
	)
	cmd := &cobra.Command{
		Use:   "generate <scop.yaml>",
		Short: "Generate tiled parallel C from a scop description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgOverride := func(cfg *sched.Config) error {
				if cmd.Flags().Changed("tile") {
					cfg.TileSizes = tile
				}
				if cmd.Flags().Changed("strategy") {
					s, err := sched.ParseStrategy(strategy)
					if err != nil {
						return err
					}
					cfg.Strategy = s
				}
				if cmd.Flags().Changed("min-sync") {
					cfg.MinimizeSync = minSync
				}
				cfg.Logger = newLogger(*verbosity)
				return nil
			}
			return runGenerate(cmd, args[0], output, cfgOverride)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input name with .gen.c)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "tiling strategy: plain, overlapped, or split")
	cmd.Flags().Int64SliceVar(&tile, "tile", nil, "tile sizes, overriding the scop file")
	cmd.Flags().BoolVar(&minSync, "min-sync", false, "enlarge time tiles to minimize synchronization")
	return cmd
}

func runGenerate(cmd *cobra.Command, path, output string, override func(*sched.Config) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sf, err := parseScopFile(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	scop, cfg, err := sf.toScop()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := override(&cfg); err != nil {
		return err
	}

	res, err := sched.Generate(scop, cfg)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("warning: %s", w))
	}

	out := outputPath(path, output)
	if err := os.WriteFile(out, []byte(res.Code), 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("wrote %s", out))
	return nil
}

func parseScopFile(data []byte) (scopFile, error) {
	var sf scopFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return scopFile{}, err
	}
	return sf, nil
}

func (sf scopFile) toScop() (sched.Scop, sched.Config, error) {
	scop := sched.Scop{Name: sf.Name}
	for _, st := range sf.Statements {
		bounds := make([][2]int64, len(st.Bounds))
		for i, b := range st.Bounds {
			if len(b) != 2 {
				return sched.Scop{}, sched.Config{}, fmt.Errorf(
					"statement %q: bound %d has %d entries, want [lower, upper]",
					st.Name, i, len(b))
			}
			bounds[i] = [2]int64{b[0], b[1]}
		}
		scop.Statements = append(scop.Statements, sched.Statement{
			Name:   st.Name,
			Dims:   st.Dims,
			Bounds: bounds,
			Body:   st.Body,
		})
	}
	add := func(list []depYAML, kind sched.DepKind) {
		for _, d := range list {
			scop.Dependences = append(scop.Dependences, sched.Dependence{
				Source: d.Source,
				Target: d.Target,
				Offset: d.Offset,
				Kind:   kind,
			})
		}
	}
	add(sf.Dependences.Flow, sched.DepFlow)
	add(sf.Dependences.Anti, sched.DepFalse)
	add(sf.Dependences.Order, sched.DepOrder)
	add(sf.Dependences.Forced, sched.DepForced)

	cfg := sched.DefaultConfig()
	cfg.TileSizes = sf.Tile.Sizes
	strat, err := sched.ParseStrategy(sf.Tile.Strategy)
	if err != nil {
		return sched.Scop{}, sched.Config{}, err
	}
	cfg.Strategy = strat
	cfg.MinimizeSync = sf.MinimizeSync
	return scop, cfg, nil
}

// outputPath derives the output file name from the input name when no
// explicit output was given: foo.yaml becomes foo.gen.c.
func outputPath(input, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".gen.c"
}
