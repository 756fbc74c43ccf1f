// Command marketdesk is a command line client for a running marketdesk server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/marketdesk/internal/client"
	"github.com/bobmcallan/marketdesk/internal/common"
)

var (
	configPath string
	serverURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "marketdesk",
	Short: "Market quotes and portfolio tracking",
	Long: `marketdesk queries quotes, price history and screeners, and manages
portfolios, positions and alerts held by a marketdesk server.

The server address comes from --server, then MARKETDESK_SERVER, then the
port in the config file.`,
	SilenceUsage: true,
	Version:      common.GetFullVersion(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/marketdesk.toml", "Path to marketdesk.toml used to find the server port")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "marketdesk server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of tables")
}

// resolveServerURL picks the server address from flags, env or config.
func resolveServerURL() (string, error) {
	if serverURL != "" {
		return serverURL, nil
	}
	if env := os.Getenv("MARKETDESK_SERVER"); env != "" {
		return env, nil
	}
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	return "http://localhost:" + strconv.Itoa(cfg.Server.Port), nil
}

func newClient() (*client.Client, error) {
	url, err := resolveServerURL()
	if err != nil {
		return nil, err
	}
	return client.New(url), nil
}

// render prints v as JSON when --json is set, otherwise calls text.
func render(w io.Writer, v interface{}, text func(io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
