package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"southwinds.dev/winvault"
)

var (
	vaultJSONOutput bool
	vaultForce      bool
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the key vault store",
	Long: `Manage the key vault store.

The store is a single encrypted file holding key records, protected under
the current user scope of the Windows data protection service.`,
}

var vaultKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key records in the vault",
	Long: `List the key records held in the vault store.

Key material is never printed; only record identifiers, attributes, and
timestamps are shown.

Examples:
  # List records in the default vault
  winvault vault keys

  # List records in a specific store
  winvault vault keys --vault-path C:\data\KeyVaultDpapi.dat`,
	RunE: runVaultKeys,
}

var vaultExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Remove expired key records from the vault",
	Long: `Remove key records past their expiration time and persist the result.

Examples:
  # Sweep the default vault
  winvault vault expire`,
	RunE: runVaultExpire,
}

var vaultCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the vault store",
	Long: `Delete the vault store file and discard its key records.

This is irreversible: the key material cannot be recovered once the file is
gone. A store that is already absent is not an error.

Examples:
  winvault vault clean --force`,
	RunE: runVaultClean,
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultKeysCmd)
	vaultCmd.AddCommand(vaultExpireCmd)
	vaultCmd.AddCommand(vaultCleanCmd)

	vaultKeysCmd.Flags().BoolVar(&vaultJSONOutput, "json", false, "Output in JSON format")
	vaultCleanCmd.Flags().BoolVar(&vaultForce, "force", false, "Delete without confirmation")
}

func runVaultKeys(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	vault, err := newKeyVault()
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	records, err := vault.LoadAllKeyRecords()
	if err != nil {
		if errors.Is(err, winvault.ErrResourceNotFound) {
			fmt.Println("No vault store found.")
			return auditCmdComplete(cmd, nil, started)
		}
		return auditCmdComplete(cmd, fmt.Errorf("failed to load key records: %w", err), started)
	}

	if vaultJSONOutput {
		return auditCmdComplete(cmd, json.NewEncoder(os.Stdout).Encode(recordSummaries(records)), started)
	}

	if len(records) == 0 {
		fmt.Println("No key records found.")
		return auditCmdComplete(cmd, nil, started)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC().Unix()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KEY ID\tISSUED\tEXPIRES\tSTATUS\n")
	for _, id := range ids {
		record := records[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			id, formatServerTime(record.IssuedServerTime),
			formatServerTime(record.ExpirationServerTime), recordStatus(record, now))
	}
	return auditCmdComplete(cmd, w.Flush(), started)
}

// recordSummaries strips key material before records are printed.
func recordSummaries(records map[string]*winvault.KeyRecord) []map[string]interface{} {
	summaries := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, map[string]interface{}{
			"id":                     record.ID,
			"attributes":             record.Attributes,
			"issued_server_time":     record.IssuedServerTime,
			"expiration_server_time": record.ExpirationServerTime,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i]["id"].(string) < summaries[j]["id"].(string)
	})
	return summaries
}

func formatServerTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04:05")
}

func recordStatus(record *winvault.KeyRecord, now int64) string {
	if record.Expired(now) {
		return "EXPIRED"
	}
	return "ACTIVE"
}

func runVaultExpire(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	vault, err := newKeyVault()
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	records, err := vault.LoadAllKeyRecords()
	if err != nil {
		if errors.Is(err, winvault.ErrResourceNotFound) {
			fmt.Println("No vault store found.")
			return auditCmdComplete(cmd, nil, started)
		}
		return auditCmdComplete(cmd, fmt.Errorf("failed to load key records: %w", err), started)
	}

	removed := vault.ExpireKeys()
	if removed == 0 {
		fmt.Printf("No expired records among %d.\n", len(records))
		return auditCmdComplete(cmd, nil, started)
	}

	remaining := vault.Records()
	if err = vault.SaveAllKeyRecords(remaining); err != nil {
		return auditCmdComplete(cmd, fmt.Errorf("failed to save vault: %w", err), started)
	}
	fmt.Printf("Removed %d expired record(s), %d remaining.\n", removed, len(remaining))
	return auditCmdComplete(cmd, nil, started)
}

func runVaultClean(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	vault, err := newKeyVault()
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	if !vaultForce && !promptConfirmation(fmt.Sprintf("Delete vault store %s?", vault.FilePath())) {
		fmt.Println("Aborted.")
		return auditCmdComplete(cmd, nil, started)
	}

	vault.CleanVaultStore()
	fmt.Printf("Vault store removed: %s\n", vault.FilePath())
	return auditCmdComplete(cmd, nil, started)
}
