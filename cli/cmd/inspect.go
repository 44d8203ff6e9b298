package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"southwinds.dev/winvault"
)

var inspectJSONOutput bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the layout of a protected store file",
	Long: `Show the layout of a protected store file without decrypting it.

Reports whether the file uses the legacy headerless layout or carries a
versioned header, and for versioned files shows the file type, protection
format, and layout version.

Examples:
  # Inspect a device profile bundle
  winvault inspect DeviceProfiles.dat

  # Machine-readable output
  winvault inspect --json KeyVaultDpapi.dat`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSONOutput, "json", false, "Output in JSON format")
}

func runInspect(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd, args)

	info, err := winvault.InspectFile(args[0])
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	if inspectJSONOutput {
		return auditCmdComplete(cmd, json.NewEncoder(os.Stdout).Encode(info), started)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", info.Path)
	fmt.Fprintf(w, "Size:\t%d bytes\n", info.Size)
	if info.Legacy {
		fmt.Fprintf(w, "Layout:\tlegacy (no header)\n")
	} else {
		fmt.Fprintf(w, "Layout:\tversioned\n")
		fmt.Fprintf(w, "File Type:\t%s\n", info.FileTypeID)
		fmt.Fprintf(w, "Format:\t%s\n", info.Format)
		fmt.Fprintf(w, "Version:\t%s\n", info.FormatVersion)
	}
	fmt.Fprintf(w, "Payload:\t%d bytes\n", info.PayloadBytes)
	return auditCmdComplete(cmd, w.Flush(), started)
}
