package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"db-relay/internal/params"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
)

var (
	previewRows    int
	previewQuery   string
	previewFromInt string
)

var tablesCmd = &cobra.Command{
	Use:   "tables <connection>",
	Short: "List the tables visible through a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ref, err := a.connection(args[0])
		if err != nil {
			return err
		}
		tables, err := a.introspector.ListTables(cmd.Context(), ref.databaseType, ref.connStr)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(tables)
		}
		for i, t := range tables {
			fmt.Printf("[%02d] %s\n", i+1, t.QualifiedName())
		}
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <connection> <table>",
	Short: "List the columns of a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ref, err := a.connection(args[0])
		if err != nil {
			return err
		}
		cols, err := a.introspector.ListColumns(cmd.Context(), ref.databaseType, ref.connStr, args[1])
		if errors.Is(err, schema.ErrColumnsUnavailable) {
			return fmt.Errorf("%s: column listing is not available for %s connections", ref.name, ref.databaseType)
		}
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cols)
		}
		printColumns(cols)
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <connection>",
	Short: "List tables with their columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ref, err := a.connection(args[0])
		if err != nil {
			return err
		}
		tables, err := a.introspector.Describe(cmd.Context(), ref.databaseType, ref.connStr)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(tables)
		}
		for _, t := range tables {
			fmt.Printf("%s\n", t.QualifiedName())
			printColumns(t.Columns)
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <connection>",
	Short: "Run a query and show its first rows without committing anything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		query, connRef := previewQuery, ""
		if len(args) == 1 {
			connRef = args[0]
		}
		if previewFromInt != "" {
			it, err := a.catalog.Integration(cmd.Context(), previewFromInt)
			if err != nil {
				return fmt.Errorf("integration '%s': %w", previewFromInt, err)
			}
			query, connRef = it.SourceQuery, it.SourceConnectionID
		}
		if query == "" || connRef == "" {
			return fmt.Errorf("a connection and --query, or --integration, are required")
		}

		ref, err := a.connection(connRef)
		if err != nil {
			return err
		}
		rows := previewRows
		if rows <= 0 {
			rows = a.cfg.Settings.PreviewRows
		}
		p, err := a.introspector.PreviewRows(cmd.Context(), ref.databaseType, ref.connStr, query, rows)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(p)
		}
		fmt.Println(strings.Join(p.Columns, " | "))
		for _, r := range p.Rows {
			cells := make([]string, len(r))
			for i, v := range r {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Println(strings.Join(cells, " | "))
		}
		fmt.Printf("(%d rows)\n", p.RowCount)
		return nil
	},
}

var paramsCmd = &cobra.Command{
	Use:   "params <integration-id>",
	Short: "Show target placeholders, source columns and suggested mappings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		it, err := a.catalog.Integration(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("integration '%s': %w", args[0], err)
		}
		placeholders := params.ExtractParameters(it.TargetQuery)

		ref, err := a.connection(it.SourceConnectionID)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Settings.ProbeTimeout)
		defer cancel()
		columns, err := params.ExtractSourceColumns(ctx, a.introspector.Connector, ref.databaseType, ref.connStr, it.SourceQuery)
		if err != nil {
			return fmt.Errorf("failed to probe source columns: %w", err)
		}
		suggested := params.SuggestMappings(placeholders, columns)

		if jsonOut {
			return printJSON(map[string]any{
				"parameters":  placeholders,
				"columns":     columns,
				"suggestions": suggested,
			})
		}
		fmt.Printf("Parameters: %s\n", strings.Join(placeholders, ", "))
		fmt.Printf("Columns:    %s\n", strings.Join(columns, ", "))
		fmt.Println("Suggested mappings:")
		for _, m := range suggested {
			fmt.Printf("  %-24s <- %s\n", "@"+m.TargetParameter, m.SourceColumn)
		}
		return nil
	},
}

func printColumns(cols []*schema.Column) {
	for _, c := range cols {
		flags := ""
		if c.IsPrimaryKey {
			flags += " PK"
		}
		if !c.Nullable {
			flags += " NOT NULL"
		}
		fmt.Printf("    %-24s %s%s\n", c.Name, c.DataType, flags)
	}
}

func init() {
	RootCmd.AddCommand(tablesCmd, columnsCmd, describeCmd, previewCmd, paramsCmd)

	for _, c := range []*cobra.Command{tablesCmd, columnsCmd, describeCmd, previewCmd, paramsCmd} {
		c.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	}
	previewCmd.Flags().IntVar(&previewRows, "rows", 0, "Maximum rows to read (default settings.preview_rows)")
	previewCmd.Flags().StringVarP(&previewQuery, "query", "q", "", "Query to preview")
	previewCmd.Flags().StringVar(&previewFromInt, "integration", "", "Preview the source query of this integration")
}
