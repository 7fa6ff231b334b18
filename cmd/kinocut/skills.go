package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/kinocut/kinocut/pkg/presenter"
	"github.com/kinocut/kinocut/pkg/registry"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect the skill catalog",
}

var skillsListCategory string
var skillsListTag string

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available skills",
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}

		var names []string
		switch {
		case skillsListCategory != "":
			names = reg.ByCategory(skillsListCategory)
		case skillsListTag != "":
			names = reg.ByTag(skillsListTag)
		default:
			names = reg.Names()
		}
		sort.Strings(names)

		for _, name := range names {
			def, _ := reg.Get(name)
			fmt.Printf("%-16s %-12s %s\n", def.Name, def.Category, def.Description)
		}
	},
}

var skillsShowCmd = &cobra.Command{
	Use:   "show [skill]",
	Short: "Show one skill's parameters",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}
		def, ok := reg.Get(args[0])
		if !ok {
			presenter.Error(fmt.Errorf("no skill named %q", args[0]), "try 'kinocut skills list'")
			os.Exit(1)
		}

		presenter.Section(def.Name)
		fmt.Println(def.Description)
		fmt.Printf("category: %s\n", def.Category)
		if len(def.Tags) > 0 {
			fmt.Printf("tags: %s\n", strings.Join(def.Tags, ", "))
		}
		if len(def.Params) > 0 {
			fmt.Println()
			for _, p := range def.Params {
				fmt.Printf("  %-14s %s%s\n", p.Name, string(p.Type), paramDetails(p))
			}
		}
	},
}

func paramDetails(p skillstypes.ParameterSpec) string {
	var parts []string
	if p.Required {
		parts = append(parts, "required")
	}
	if p.Default != nil {
		parts = append(parts, fmt.Sprintf("default %v", p.Default))
	}
	if p.Min != nil && p.Max != nil {
		parts = append(parts, fmt.Sprintf("range [%s, %s]",
			skillstypes.FormatNumber(*p.Min), skillstypes.FormatNumber(*p.Max)))
	}
	if len(p.Choices) > 0 {
		parts = append(parts, "choices: "+strings.Join(p.Choices, ", "))
	}
	if len(p.Aliases) > 0 {
		parts = append(parts, "aliases: "+strings.Join(p.Aliases, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

var skillsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search skills by name, description, or tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}
		matches := reg.Search(args[0])
		if len(matches) == 0 {
			presenter.Warning("no skills matched")
			return
		}
		for _, def := range matches {
			fmt.Printf("%-16s %-12s %s\n", def.Name, def.Category, def.Description)
		}
	},
}

var skillsCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the full human-readable catalog",
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}
		fmt.Print(reg.CatalogText())
	},
}

var skillsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the pipeline JSON schema for pipeline producers",
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}
		schema, err := reg.SchemaJSON()
		if err != nil {
			presenter.Error(err, "rendering schema")
			os.Exit(1)
		}
		fmt.Println(string(schema))
	},
}

var skillsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch skill pack directories and reload on change",
	Long: `Watch keeps the catalog loaded and reloads skill packs whenever a
pack file changes. Useful while authoring custom skills; stop with Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		reg, err := buildRegistry(ctx)
		if err != nil {
			presenter.Error(err, "loading skill catalog")
			os.Exit(1)
		}

		cfg := registry.DefaultPackConfig()
		if viper.IsSet("skill_packs") {
			if err := viper.UnmarshalKey("skill_packs", &cfg); err != nil {
				presenter.Error(err, "parsing skill_packs config")
				os.Exit(1)
			}
		}

		presenter.Info(fmt.Sprintf("watching %s", strings.Join(cfg.Dirs, ", ")))
		if err := registry.Watch(ctx, reg, cfg); err != nil {
			presenter.Error(err, "skill pack watcher stopped")
			os.Exit(1)
		}
	},
}

func init() {
	skillsListCmd.Flags().StringVar(&skillsListCategory, "category", "", "Filter by category")
	skillsListCmd.Flags().StringVar(&skillsListTag, "tag", "", "Filter by tag")

	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsShowCmd)
	skillsCmd.AddCommand(skillsSearchCmd)
	skillsCmd.AddCommand(skillsCatalogCmd)
	skillsCmd.AddCommand(skillsSchemaCmd)
	skillsCmd.AddCommand(skillsWatchCmd)
}
