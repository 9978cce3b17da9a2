package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nlcp/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that the configuration is valid",
	Long:  `Verify parses and validates the HCL configuration files. Path can be a file or directory.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		cfg, err := config.LoadAndValidate(path)
		if err != nil {
			return err
		}

		var warnings []string
		fmt.Printf("Configuration is valid!\n")

		fmt.Printf("Found %d variable(s)\n", len(cfg.Variables))
		for i := range cfg.Variables {
			v := &cfg.Variables[i]
			resolved, err := config.ResolveVariableValue(v)
			if err != nil {
				return err
			}
			if resolved == "" {
				warnings = append(warnings, fmt.Sprintf("variable '%s' has no default and no value set", v.Name))
			}
			switch {
			case v.Secret && resolved != "":
				fmt.Printf("  - %s (secret, %s)\n", v.Name, v.Masked(resolved))
			case v.Secret:
				fmt.Printf("  - %s (secret, not set)\n", v.Name)
			default:
				fmt.Printf("  - %s = %q\n", v.Name, resolved)
			}
		}

		fmt.Printf("Found %d model(s)\n", len(cfg.Models))
		for _, m := range cfg.Models {
			fmt.Printf("  - %s (provider: %s, models: %v)\n", m.Name, m.Provider, m.AllowedModels)
		}

		s := cfg.Storage
		fmt.Printf("Storage\n")
		fmt.Printf("  - documents: %s\n", s.Documents.Backend)
		fmt.Printf("  - relational: %s\n", s.Relational.Backend)
		if s.Relational.Backend == config.RelationalBackendMemory || s.Documents.Backend == config.DocumentBackendMemory {
			warnings = append(warnings, "in-memory stores serve the built-in sample data only")
		}

		fmt.Printf("Found %d tool provider(s)\n", len(cfg.Providers))
		for _, p := range cfg.Providers {
			launch := "in-process"
			if p.Protocol != config.ProtocolLocal {
				command := p.Command
				if command == "" {
					command = "nlcp"
				}
				launch = command + " " + strings.Join(p.CommandArgs(), " ")
			}
			fmt.Printf("  - %s (tools: %s, protocol: %s, %s)\n", p.Name, p.Tools, p.Protocol, launch)
		}

		a := cfg.Agent
		_, modelID, _ := a.ResolveModel(cfg.Models)
		fmt.Printf("Agent\n")
		fmt.Printf("  - model: %s (%s)\n", a.Model, modelID)
		fmt.Printf("  - max iterations: %d\n", a.GetMaxIterations())
		fmt.Printf("  - call timeout: %s, turn timeout: %s\n", a.GetCallTimeout(), a.GetTurnTimeout())

		if cfg.Server != nil {
			fmt.Printf("Server\n")
			fmt.Printf("  - listen: %s, origins: %v, request timeout: %s\n",
				cfg.Server.Listen, cfg.Server.AllowedOrigins, cfg.Server.GetRequestTimeout())
		}

		if len(warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
