package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/periphio/hidcore/internal/usbsvc/gadget"
	"github.com/periphio/hidcore/pkg/agent"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "hidcore"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:      filepath.Join(configDir, "data"),
		DeviceConfig: filepath.Join(configDir, "device.yml"),
	}
	agentCmd := &cobra.Command{
		Use:   "hidcore-agent",
		Short: "USB HID keyboard agent",
		Long:  `The hidcore agent runs a one-button USB HID keyboard on top of a pluggable transport backend.`,
	}
	var a *agent.Agent
	agentProvider := func() *agent.Agent {
		return a
	}
	agentCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	agentCmd.PersistentFlags().StringVar(&cfg.DeviceConfig, "device-config", cfg.DeviceConfig, "device config file")
	agentCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	agentCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return a.Close()
	}
	agentCmd.AddCommand(NewRun(agentProvider))
	agentCmd.AddCommand(NewJournal(agentProvider))
	agentCmd.AddCommand(NewListUDCs())
	return agentCmd
}

func NewRun(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the hidcore agent",
		Long:  `Run the keyboard device until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent().Run(cmd.Context())
		},
	}
}

func NewJournal(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Print the device lifecycle journal",
		Long:  `Print the recorded device lifecycle transitions in chronological order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := agent().Journal().List()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}

func NewListUDCs() *cobra.Command {
	return &cobra.Command{
		Use:   "list-udcs",
		Short: "List UDC controllers",
		Long:  `List the USB device controllers available for the gadget backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, udc := range gadget.ListUDCs() {
				fmt.Fprintln(cmd.OutOrStdout(), udc)
			}
			return nil
		},
	}
}
