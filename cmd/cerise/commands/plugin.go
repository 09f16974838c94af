package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/config"
	"github.com/vmoranv/cerise/internal/plugin"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Install, list, and manage Cerise plugins",
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <zip-path>",
	Short: "Install a plugin from a local zip archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginInstall,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded plugins and the abilities they own",
	RunE:  runPluginList,
}

var pluginUnloadCmd = &cobra.Command{
	Use:   "unload <name>",
	Short: "Unload a plugin and its registered abilities",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginUnload,
}

func init() {
	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginUnloadCmd)
}

func pluginPaths() *config.Paths {
	return config.NewPaths(dataDir())
}

func runPluginInstall(cmd *cobra.Command, args []string) error {
	archive, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	paths := pluginPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	installer := plugin.NewInstaller(paths.PluginsDir())
	result, err := installer.InstallZip(archive, "local-zip", filepath.Base(args[0]))
	if err != nil {
		return err
	}

	registry := ability.NewRegistry()
	manager := plugin.NewManager(paths.PluginsDir(), registry)
	manifestPath := filepath.Join(result.Dir, "manifest.json")
	if err := manager.Load(context.Background(), manifestPath, nil); err != nil {
		return err
	}

	fmt.Printf("installed %s (%s)\n", result.Manifest.Name, result.Manifest.Version)
	return nil
}

func runPluginList(cmd *cobra.Command, args []string) error {
	paths := pluginPaths()
	registry := ability.NewRegistry()
	manager := plugin.NewManager(paths.PluginsDir(), registry)

	manifests, err := manager.Discover()
	if err != nil {
		return err
	}
	for _, manifestPath := range manifests {
		if err := manager.Load(context.Background(), manifestPath, nil); err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", manifestPath, err)
			continue
		}
	}
	for _, name := range manager.LoadedNames() {
		fmt.Println(name)
	}
	return nil
}

func runPluginUnload(cmd *cobra.Command, args []string) error {
	paths := pluginPaths()
	registry := ability.NewRegistry()
	manager := plugin.NewManager(paths.PluginsDir(), registry)

	manifests, err := manager.Discover()
	if err != nil {
		return err
	}
	for _, manifestPath := range manifests {
		_ = manager.Load(context.Background(), manifestPath, nil)
	}

	if !manager.Unload(args[0]) {
		return fmt.Errorf("plugin %q is not loaded", args[0])
	}
	fmt.Printf("unloaded %s\n", args[0])
	return nil
}
