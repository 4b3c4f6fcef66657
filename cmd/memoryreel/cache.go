package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/memoryreel/internal/cache"
	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/pipeline"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the face scan cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info [folder]",
	Short: "Show the scan cache of an output folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir := folderArg(args)
		store := cacheStore(cfg, dir)

		summary, err := store.Summary()
		if errors.Is(err, cache.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No scan cache in %s\n", dir)
			return nil
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache:    %s\n", store.Path())
		fmt.Fprintf(out, "Previews: %s\n", store.PreviewDir())
		fmt.Fprintf(out, "Scanned:  %s\n", summary.ScanTimestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Videos:   %d\n", summary.VideoCount)
		fmt.Fprintf(out, "Faces:    %d\n", summary.FaceCount)
		fmt.Fprintf(out, "People:   %d\n", summary.ClusterCount)
		fmt.Fprintf(out, "Valid:    %v\n", store.IsValid(dir))
		return nil
	},
}

var clearForce bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear [folder]",
	Short: "Delete the scan cache and previews of an output folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir := folderArg(args)
		store := cacheStore(cfg, dir)

		if !clearForce {
			prompter := pipeline.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			ok, err := prompter.Confirm(fmt.Sprintf("Delete %s and %s?", store.Path(), store.PreviewDir()))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return err
		}
		log.Info().Str("dir", dir).Msg("scan cache cleared")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "memoryreel.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if err := config.Default().Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "do not ask for confirmation")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")

	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func folderArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "."
}

// cacheStore opens the cache of dir without starting ffmpeg or the models.
func cacheStore(cfg *config.Config, dir string) *cache.Store {
	return cache.NewStore(log.Logger, dir, cfg.Faces.CacheFile, cfg.Faces.PreviewDir, cfg.Library.VideoFormats)
}
