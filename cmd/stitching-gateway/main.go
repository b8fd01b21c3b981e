package main

import (
	"fmt"
	"os"

	"github.com/n9te9/go-graphql-stitching-gateway/server"
	"github.com/spf13/cobra"
)

const version = "v0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Stitching Gateway",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Stitching Gateway %s\n", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default gateway.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if err := server.Init(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Stitching Gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		withSubgraphs, _ := cmd.Flags().GetBool("with-subgraphs")
		return server.Run(path, withSubgraphs)
	},
}

var subgraphCmd = &cobra.Command{
	Use:       "subgraph <posts|users>",
	Short:     "Serve one subschema standalone",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"posts", "users"},
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return server.RunSubgraph(args[0], port)
	},
}

var printSchemaCmd = &cobra.Command{
	Use:   "print-schema",
	Short: "Print the stitched schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		return server.PrintSchema(cmd.Context(), path, cmd.OutOrStdout())
	},
}

func main() {
	rootCmd := cobra.Command{
		Use:           "stitching-gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	initCmd.Flags().String("config", server.DefaultConfigPath, "path of the config file to write")
	serveCmd.Flags().String("config", server.DefaultConfigPath, "gateway config file")
	serveCmd.Flags().Bool("with-subgraphs", false, "also serve the configured remote subschemas in this process")
	subgraphCmd.Flags().Int("port", 4001, "port to listen on")
	printSchemaCmd.Flags().String("config", "", "gateway config file (default: posts and users in-process)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(subgraphCmd)
	rootCmd.AddCommand(printSchemaCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
