package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"southwinds.dev/winvault"
)

var (
	profilesJSONOutput bool
	migrateToVersion   string
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage the device profile bundle",
	Long: `Manage the device profile bundle.

The bundle is a single encrypted file holding every enrolled device profile
plus the identifier of the active one. Operations that read or write the
bundle require the Windows data protection service and only work on the
machine and account that protected the file.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the profiles in the bundle",
	Long: `List the profiles held in the device profile bundle.

Examples:
  # List profiles in the default bundle
  winvault profiles list

  # List profiles in a specific file
  winvault profiles list --profile-path C:\data\DeviceProfiles.dat`,
	RunE: runProfilesList,
}

var profilesMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite the bundle in a different format version",
	Long: `Rewrite the device profile bundle in a different format version.

The bundle is loaded with the layout found on disk and saved back in the
requested layout. Version 1.1 adds a cleartext header naming the file type
and layout version; version 1.0 is the legacy headerless layout.

Examples:
  # Upgrade the default bundle to the versioned layout
  winvault profiles migrate --to 1.1

  # Downgrade back to the legacy layout
  winvault profiles migrate --to 1.0`,
	RunE: runProfilesMigrate,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesMigrateCmd)

	profilesListCmd.Flags().BoolVar(&profilesJSONOutput, "json", false, "Output in JSON format")
	profilesMigrateCmd.Flags().StringVar(&migrateToVersion, "to", "", "Target format version (1.0 or 1.1)")
	profilesMigrateCmd.MarkFlagRequired("to")
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	persistor, err := newPersistor()
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	profiles, activeID, err := persistor.LoadAllProfiles()
	if err != nil {
		return auditCmdComplete(cmd, fmt.Errorf("failed to load profiles: %w", err), started)
	}

	if profilesJSONOutput {
		out := map[string]interface{}{
			"active_device_id": activeID,
			"profiles":         profileSummaries(profiles),
		}
		return auditCmdComplete(cmd, json.NewEncoder(os.Stdout).Encode(out), started)
	}

	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return auditCmdComplete(cmd, nil, started)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tDEVICE ID\tSERVER\tCREATED\tACTIVE\n")
	for _, profile := range profiles {
		created := "-"
		if profile.CreationTimestamp > 0 {
			created = time.Unix(profile.CreationTimestamp, 0).UTC().Format("2006-01-02 15:04:05")
		}
		active := ""
		if profile.DeviceID == activeID && activeID != "" {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			profile.Name, profile.DeviceID, profile.Server, created, active)
	}
	return auditCmdComplete(cmd, w.Flush(), started)
}

// profileSummaries strips key material before profiles are printed.
func profileSummaries(profiles []winvault.Profile) []map[string]interface{} {
	summaries := make([]map[string]interface{}, 0, len(profiles))
	for _, profile := range profiles {
		summaries = append(summaries, map[string]interface{}{
			"name":               profile.Name,
			"device_id":          profile.DeviceID,
			"server":             profile.Server,
			"keyspace":           profile.Keyspace,
			"creation_timestamp": profile.CreationTimestamp,
		})
	}
	return summaries
}

func runProfilesMigrate(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	if migrateToVersion != winvault.Version10 && migrateToVersion != winvault.Version11 {
		err := fmt.Errorf("unsupported target version %q (valid: %s, %s)",
			migrateToVersion, winvault.Version10, winvault.Version11)
		return auditCmdComplete(cmd, err, started)
	}

	persistor, err := newPersistor()
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	profiles, activeID, err := persistor.LoadAllProfiles()
	if err != nil {
		return auditCmdComplete(cmd, fmt.Errorf("failed to load profiles: %w", err), started)
	}

	persistor.SetFormatVersionOverride(migrateToVersion)
	if err = persistor.SaveAllProfiles(profiles, activeID); err != nil {
		return auditCmdComplete(cmd, fmt.Errorf("failed to save profiles: %w", err), started)
	}

	fmt.Printf("Migrated %d profile(s) to format version %s: %s\n",
		len(profiles), migrateToVersion, persistor.FilePath())
	return auditCmdComplete(cmd, nil, started)
}
