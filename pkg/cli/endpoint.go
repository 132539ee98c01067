package cli

import (
    "fmt"

    "github.com/spf13/cobra"

    "github.com/amirimatin/clusterdash/pkg/settings"
)

// endpointCmd manages the API endpoint stored in the settings database.
func (a *app) endpointCmd() *cobra.Command {
    cmd := &cobra.Command{Use: "endpoint", Short: "Show or change the dashboard API endpoint"}
    cmd.AddCommand(&cobra.Command{
        Use:   "get",
        Short: "Print the configured endpoint",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            s, release, err := a.openStore()
            if err != nil { return err }
            defer release()
            fmt.Fprintln(cmd.OutOrStdout(), settings.Endpoint(s))
            return nil
        },
    })
    cmd.AddCommand(&cobra.Command{
        Use:   "set <endpoint>",
        Short: "Store a new endpoint, e.g. http://localhost:5691/api",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            s, release, err := a.openStore()
            if err != nil { return err }
            defer release()
            if err := settings.SetEndpoint(s, args[0]); err != nil { return err }
            fmt.Fprintln(cmd.OutOrStdout(), settings.Endpoint(s))
            return nil
        },
    })
    cmd.AddCommand(&cobra.Command{
        Use:   "list",
        Short: "List predefined endpoints, marking the configured one",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            s, release, err := a.openStore()
            if err != nil { return err }
            defer release()
            cur := settings.Endpoint(s)
            listed := false
            for _, e := range settings.PredefinedEndpoints {
                mark := " "
                if e == cur { mark, listed = "*", true }
                fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, e)
            }
            if !listed { fmt.Fprintf(cmd.OutOrStdout(), "* %s\n", cur) }
            return nil
        },
    })
    cmd.AddCommand(&cobra.Command{
        Use:   "reset",
        Short: "Forget the stored endpoint and use the default",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            s, release, err := a.openStore()
            if err != nil { return err }
            defer release()
            if err := settings.ResetEndpoint(s); err != nil { return err }
            fmt.Fprintln(cmd.OutOrStdout(), settings.Endpoint(s))
            return nil
        },
    })
    return cmd
}
