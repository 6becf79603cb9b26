package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"db-relay/internal/engine"
	"db-relay/internal/model"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
)

var (
	jsonOut    bool
	noProgress bool
	asGiven    bool
)

var runCmd = &cobra.Command{
	Use:   "run <integration-id>",
	Short: "Run a single integration now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		res := a.orchestrator.RunIntegration(cmd.Context(), args[0])
		if jsonOut {
			return printJSON(res)
		}

		if res.Success {
			fmt.Printf("✓ %s: %d rows in %s\n", args[0], res.RowsAffected, time.Duration(res.DurationMs)*time.Millisecond)
			if res.Message != "" {
				fmt.Printf("    └ %s\n", res.Message)
			}
			return nil
		}
		return fmt.Errorf("integration '%s' failed: %s", args[0], res.Error)
	},
}

var runGroupCmd = &cobra.Command{
	Use:   "run-group <group>",
	Short: "Run every integration of a group by execution order, stopping at the first failure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		return runBatch(a, func() model.BatchResult {
			return a.orchestrator.RunGroup(cmd.Context(), args[0])
		})
	},
}

var runBatchCmd = &cobra.Command{
	Use:   "run-batch <integration-id>...",
	Short: "Run the given integrations as one fail-fast batch",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ord := engine.OrderByExecution
		if asGiven {
			ord = engine.OrderAsGiven
		}
		return runBatch(a, func() model.BatchResult {
			return a.orchestrator.RunMany(cmd.Context(), args, ord)
		})
	},
}

func runBatch(a *app, run func() model.BatchResult) error {
	var p *progress
	if !noProgress && !jsonOut {
		p = newProgress()
		a.orchestrator.Observer = p
	}

	batch := run()
	if p != nil {
		p.stop()
	}
	if jsonOut {
		if err := printJSON(batch); err != nil {
			return err
		}
	} else {
		printBatch(batch)
	}
	if !batch.Success {
		return errors.New(batch.Message)
	}
	return nil
}

func printBatch(batch model.BatchResult) {
	fmt.Println("\n📊 Summary Report (Execution Order):")
	for i, r := range batch.Results {
		icon := "✓"
		if !r.Result.Success {
			icon = "!"
		}
		fmt.Printf("[%s] [%02d/%02d] %-24s : %d rows (%d ms)\n",
			icon, i+1, len(batch.Results), r.IntegrationName, r.Result.RowsAffected, r.Result.DurationMs)
		if r.Result.Error != "" {
			fmt.Printf("    └ Error: %s\n", r.Result.Error)
		}
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Rows: %d\n", batch.TotalRowsAffected)
	if !batch.Success && len(batch.Committed) > 0 {
		fmt.Printf("Already committed: %v\n", batch.Committed)
	}
	fmt.Println(batch.Message)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	RootCmd.AddCommand(runCmd, runGroupCmd, runBatchCmd)

	for _, c := range []*cobra.Command{runCmd, runGroupCmd, runBatchCmd} {
		c.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	}
	for _, c := range []*cobra.Command{runGroupCmd, runBatchCmd} {
		c.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	}
	runBatchCmd.Flags().BoolVar(&asGiven, "as-given", false, "Keep the argument order instead of sorting by execution order")
}

// progress renders batch runs with uiprogress. It implements engine.Observer.
type progress struct {
	mu      sync.Mutex
	bar     *uiprogress.Bar
	current string
}

var _ engine.Observer = (*progress)(nil)

func newProgress() *progress {
	uiprogress.Start()
	return &progress{}
}

func (p *progress) OnStart(it model.Integration, index, total int) {
	if p.bar == nil {
		p.bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
		p.bar.PrependFunc(func(b *uiprogress.Bar) string {
			p.mu.Lock()
			defer p.mu.Unlock()
			return fmt.Sprintf("%-24s", p.current)
		})
	}
	p.setCurrent(it.Name)
}

func (p *progress) OnComplete(it model.Integration, res model.RunResult) {
	p.bar.Incr()
}

func (p *progress) OnError(it model.Integration, res model.RunResult) {
	p.setCurrent(it.Name + " (failed)")
}

func (p *progress) setCurrent(name string) {
	p.mu.Lock()
	p.current = name
	p.mu.Unlock()
}

func (p *progress) stop() {
	uiprogress.Stop()
}
