package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nlcp/config"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Manage variables",
	Long: `Manage variables stored in $NLCP_HOME/vars.txt (default ~/.nlcp/vars.txt).

A value set here overrides a variable's default; NLCP_VAR_<name> in the
environment overrides both.`,
}

var varsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, err := config.LoadVarsFromFile()
		if err != nil {
			return err
		}
		names, err := config.ListVars()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No variables set")
			return nil
		}
		for _, name := range names {
			v := config.Variable{Name: name, Secret: isSecretName(name)}
			fmt.Printf("%s=%s\n", name, v.Masked(vars[name]))
		}
		return nil
	},
}

// vars.txt has no secret flag, so list guesses from the name.
func isSecretName(name string) bool {
	name = strings.ToLower(name)
	for _, suffix := range []string{"_key", "_token", "_secret", "_password", "_uri", "_dsn"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

var varsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get a variable value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := config.GetVar(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var varsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set a variable value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetVar(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Variable '%s' set\n", args[0])
		return nil
	},
}

var varsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DeleteVar(args[0]); err != nil {
			return err
		}
		fmt.Printf("Variable '%s' deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(varsCmd)
	varsCmd.AddCommand(varsListCmd)
	varsCmd.AddCommand(varsGetCmd)
	varsCmd.AddCommand(varsSetCmd)
	varsCmd.AddCommand(varsDeleteCmd)
}
