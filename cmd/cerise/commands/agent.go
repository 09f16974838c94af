package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmoranv/cerise/internal/app"
	"github.com/vmoranv/cerise/internal/config"
	"github.com/vmoranv/cerise/internal/dialogue"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Create agents and drive their inbox/wakeup cycle",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create <agent-id>",
	Short: "Create a new agent inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCreate,
}

var agentSendCmd = &cobra.Command{
	Use:   "send <agent-id> <message>",
	Short: "Queue a message into an agent's inbox",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAgentSend,
}

var agentWakeupCmd = &cobra.Command{
	Use:   "wakeup <agent-id>",
	Short: "Wake an agent and process its pending inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentWakeup,
}

func init() {
	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentSendCmd)
	agentCmd.AddCommand(agentWakeupCmd)
}

func openApp() (*app.App, error) {
	cfg, err := config.Load(dataDir())
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.Agents.Create(args[0])
	fmt.Printf("created agent %s\n", args[0])
	return nil
}

func runAgentSend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	message := strings.Join(args[1:], " ")
	a.Agents.Send(args[0], "user", message)
	fmt.Printf("queued message for %s\n", args[0])
	return nil
}

func runAgentWakeup(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Agents.Wakeup(context.Background(), args[0], dialogue.ChatOptions{})
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("no pending messages")
		return nil
	}
	fmt.Println(result.Reply)
	return nil
}
