package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/filter"
	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

// Output formats of the parse command.
const (
	formatJSON   = "json"
	formatString = "string"
)

// errSchemaWithoutRegistry indicates --schema given without --schemas.
var errSchemaWithoutRegistry = errors.New("--schema requires --schemas")

// options holds the persistent flags.
type options struct {
	schemasPath string
	schemaName  string
	maxLength   int
	logLevel    string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "fieldsctl",
		Short:         "Parse fields expressions and filter JSON with them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.schemasPath, "schemas", "", "Path to a schemas file for schema-aware parsing")
	rootCmd.PersistentFlags().StringVar(&opts.schemaName, "schema", "", "Schema name or plural to parse against")
	rootCmd.PersistentFlags().IntVar(&opts.maxLength, "max-length", 0, "Reject longer expressions (0 disables the limit)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level written to stderr")

	rootCmd.AddCommand(
		newParseCmd(opts),
		newFilterCmd(opts),
		newTokensCmd(),
	)

	return rootCmd
}

func newParseCmd(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse EXPRESSION",
		Short: "Print the tree an expression materializes to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.parse(cmd, args[0])
			if err != nil {
				return err
			}

			switch format {
			case formatString:
				_, err = fmt.Fprintln(cmd.OutOrStdout(), f.String())
				return err
			case formatJSON:
				data, err := json.MarshalIndent(f, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			default:
				return fmt.Errorf("unknown format %q (json, string)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatJSON, "Output format (json, string)")

	return cmd
}

func newFilterCmd(opts *options) *cobra.Command {
	var indent bool

	cmd := &cobra.Command{
		Use:   "filter EXPRESSION [FILE|-]",
		Short: "Filter a JSON document, read from FILE or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.parse(cmd, args[0])
			if err != nil {
				return err
			}

			source := "-"
			if len(args) == 2 {
				source = args[1]
			}
			data, err := readInput(cmd, source)
			if err != nil {
				return err
			}

			doc, err := fields.DecodeValue(data)
			if err != nil {
				return fmt.Errorf("invalid JSON input: %w", err)
			}

			out, err := filter.Marshal(doc, f)
			if err != nil {
				return err
			}
			if indent {
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err != nil {
					return err
				}
				out = buf.Bytes()
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().BoolVar(&indent, "indent", false, "Indent the output")

	return cmd
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens EXPRESSION",
		Short: "Print the token stream of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, tok := range fields.Tokenize(args[0]) {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), tok.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// parse parses input schema-aware when a schema was selected.
func (o *options) parse(cmd *cobra.Command, input string) (*fields.Fields, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  o.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	parserOpts := []fields.ParserOption{
		fields.WithLogger(logger),
		fields.WithMaxLength(o.maxLength),
	}

	var sch *schema.Schema
	switch {
	case o.schemasPath != "":
		registry, err := schema.Load(o.schemasPath)
		if err != nil {
			return nil, err
		}
		parserOpts = append(parserOpts, fields.WithSchemaResolver(registry.Child))

		if o.schemaName != "" {
			sch = registry.Get(o.schemaName)
			if sch == nil {
				sch = registry.GetByPlural(o.schemaName)
			}
			if sch == nil {
				return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, o.schemaName)
			}
		}
	case o.schemaName != "":
		return nil, errSchemaWithoutRegistry
	}

	parser := fields.NewParser(parserOpts...)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if sch == nil {
		return parser.Parse(ctx, input)
	}
	return parser.ParseSchema(ctx, input, sch)
}

func readInput(cmd *cobra.Command, source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	data, err := os.ReadFile(source) //nolint:gosec // user-supplied input path
	if err != nil {
		return nil, fmt.Errorf("error opening file %s: %w", source, err)
	}
	return data, nil
}
