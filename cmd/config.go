package cmd

import (
	"fmt"

	"db-relay/internal/config"
	"db-relay/internal/dialect"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the loaded connections and integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		fmt.Println("🔌 Connections:")
		for _, c := range cfg.Connections {
			status := "inactive"
			if c.IsActive {
				status = "active"
			}
			if _, err := dialect.Parse(c.DatabaseType); err != nil {
				status += ", unsupported type"
			}
			fmt.Printf("  %-12s %-20s %-10s (%s) %s\n", c.ID, c.Name, c.DatabaseType, status, config.MaskConnectionString(c.ConnectionString))
		}

		cat := config.NewCatalog(cfg)
		fmt.Println("\n🔁 Integrations:")
		for _, it := range cfg.Integrations {
			group := it.GroupName
			if group == "" {
				group = "-"
			}
			fmt.Printf("  %-12s %-24s %s -> %s  group=%s order=%d mappings=%d\n",
				it.ID, it.Name, it.SourceConnectionID, it.TargetConnectionID, group, it.ExecutionOrder, len(it.Mappings))
		}
		if groups := cat.Groups(); len(groups) > 0 {
			fmt.Printf("\nGroups: %v\n", groups)
		}

		fmt.Printf("\nTimeouts: read=%s write=%s probe=%s\n", cfg.Settings.ReadTimeout, cfg.Settings.WriteTimeout, cfg.Settings.ProbeTimeout)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
}
