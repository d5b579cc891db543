package cmd

import (
	"fmt"

	"github.com/activebook/prepdash/data"
	"github.com/activebook/prepdash/service"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server-side generation job status per module",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := data.NewConfigStore()
		catalog, err := data.LoadCatalog(data.GetModulesFilePath())
		if err != nil {
			return err
		}
		client := service.NewClient(store.GetEndpoint())

		for _, spec := range catalog {
			probe, err := client.StreamStatus(cmd.Context(), service.ModuleKey(spec.Key))
			if err != nil {
				fmt.Printf("  %-28s %s\n", spec.Title, errColor(err.Error()))
				continue
			}
			switch {
			case probe.Resumed:
				// We only asked for status; drop the stream.
				probe.Body.Close()
				fmt.Printf("  %-28s %s\n", spec.Title, okColor("live stream available"))
			case probe.Job == nil, probe.Job.State == service.JobNone:
				fmt.Printf("  %-28s %s\n", spec.Title, grayColor("nothing to resume"))
			case probe.Job.State == service.JobActive:
				detail := ""
				if probe.Job.StreamID != "" {
					detail = grayColor(" (" + probe.Job.StreamID + ")")
				}
				fmt.Printf("  %-28s %s%s\n", spec.Title, warnColor("active"), detail)
			case probe.Job.State == service.JobCompleted:
				fmt.Printf("  %-28s %s\n", spec.Title, okColor("completed"))
			default:
				fmt.Printf("  %-28s %s\n", spec.Title, errColor(string(probe.Job.State)))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
