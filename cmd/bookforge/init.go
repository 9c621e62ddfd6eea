package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the bookforge home directory and default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("Initialized bookforge home at %s\n", h.Path())
		fmt.Printf("Config written to %s\n", h.ConfigPath())
		fmt.Println("\nSet your API keys before generating:")
		fmt.Println("  export OPENAI_API_KEY=...")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
