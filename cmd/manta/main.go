// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-manta/pkg/cli"
	"github.com/jeremyhahn/go-manta/pkg/config"
	"github.com/jeremyhahn/go-manta/pkg/version"
)

var (
	cfgFile      string
	viperConfig  *viper.Viper
	globalConfig *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
		os.Exit(1)
	}
}

func outputFormat() cli.OutputFormat {
	if globalConfig == nil || globalConfig.OutputFormat == "" {
		return cli.FormatText
	}
	return cli.OutputFormat(globalConfig.OutputFormat)
}

// withClient builds a command context from the global configuration and
// closes it once fn returns.
func withClient(fn func(cc *cli.CommandContext) error) error {
	cc, err := cli.NewCommandContext(globalConfig)
	if err != nil {
		return err
	}
	defer func() { _ = cc.Close() }()
	return fn(cc)
}

func printResult(message string) {
	fmt.Print(cli.FormatOperationResult(&cli.OperationResult{Success: true, Message: message}, outputFormat()))
}

var rootCmd = &cobra.Command{
	Use:   "manta",
	Short: "A CLI tool for the Manta object store",
	Long: `manta is a CLI tool for storing objects and running compute jobs on a
Manta object store.

Paths starting with "~~" are relative to the account home, for example
~~/stor/file.txt.

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (MANTA_URL, MANTA_USER, MANTA_KEY_ID, ...)
  - Configuration file (~/.manta.yaml or ./.manta.yaml)
  - Default values (lowest priority)`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		if err := viperConfig.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}

		globalConfig = config.FromViper(viperConfig)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [directory]",
	Short: "List a directory",
	Example: `  manta ls                                       # List ~~/stor
  manta ls ~~/public                             # List another directory
  manta ls ~~/stor -o table                      # List as a table`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "~~/stor"
		if len(args) > 0 {
			dir = args[0]
		}
		return withClient(func(cc *cli.CommandContext) error {
			objects, err := cc.ListCommand(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatListResult(objects, outputFormat()))
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path> [output-file]",
	Short: "Download an object",
	Long: `Download an object. If output-file is not specified or is '-', the
content is written to stdout.`,
	Example: `  manta get ~~/stor/file.txt                     # Download to stdout
  manta get ~~/stor/file.txt local.txt           # Download to a file`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath := ""
		if len(args) > 1 {
			outputPath = args[1]
		}
		return withClient(func(cc *cli.CommandContext) error {
			if err := cc.GetCommand(cmd.Context(), args[0], outputPath); err != nil {
				return err
			}
			if outputPath != "" && outputPath != "-" {
				printResult(fmt.Sprintf("Successfully downloaded '%s' to '%s'", args[0], outputPath))
			}
			return nil
		})
	},
}

var headCmd = &cobra.Command{
	Use:     "head <path>",
	Short:   "Show the metadata of an object or directory",
	Example: `  manta head ~~/stor/file.txt -o json`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cc *cli.CommandContext) error {
			md, err := cc.HeadCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatMetadataResult(md, outputFormat()))
			return nil
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <source-file> <path>",
	Short: "Upload an object",
	Long: `Upload a file as an object. Use '-' as the source-file to stream stdin;
stdin uploads are sent with chunked transfer encoding.`,
	Example: `  manta put file.txt ~~/stor/file.txt                          # Upload a file
  cat file.txt | manta put - ~~/stor/file.txt                  # Upload from stdin
  manta put file.txt ~~/stor/a/b/file.txt -p                   # Create parents first
  manta put file.txt ~~/stor/file.txt --header m-owner=alice   # Attach metadata`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType, _ := cmd.Flags().GetString("content-type") //nolint:errcheck // flags are validated by cobra
		durability, _ := cmd.Flags().GetInt("copies")           //nolint:errcheck // flags are validated by cobra
		headers, _ := cmd.Flags().GetStringToString("header")   //nolint:errcheck // flags are validated by cobra
		parents, _ := cmd.Flags().GetBool("parents")            //nolint:errcheck // flags are validated by cobra

		return withClient(func(cc *cli.CommandContext) error {
			md, err := cc.PutCommand(cmd.Context(), args[0], args[1], cli.PutOptions{
				ContentType: contentType,
				Metadata:    headers,
				Durability:  durability,
				Parents:     parents,
			})
			if err != nil {
				return err
			}
			printResult(fmt.Sprintf("Successfully uploaded '%s' as '%s'", args[0], md.Path))
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <directory>",
	Short: "Create a directory",
	Example: `  manta mkdir ~~/stor/logs                       # Create one directory
  manta mkdir -p ~~/stor/logs/2024/01            # Create missing parents`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parents, _ := cmd.Flags().GetBool("parents") //nolint:errcheck // flags are validated by cobra
		return withClient(func(cc *cli.CommandContext) error {
			if err := cc.MkdirCommand(cmd.Context(), args[0], parents); err != nil {
				return err
			}
			printResult(fmt.Sprintf("Created '%s'", args[0]))
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an object or directory",
	Long: `Delete an object or an empty directory. With -r, a directory is deleted
together with everything below it.`,
	Example: `  manta rm ~~/stor/file.txt                      # Delete an object
  manta rm -r ~~/stor/logs                       # Delete a tree`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive") //nolint:errcheck // flags are validated by cobra
		return withClient(func(cc *cli.CommandContext) error {
			if err := cc.RemoveCommand(cmd.Context(), args[0], recursive); err != nil {
				return err
			}
			printResult(fmt.Sprintf("Deleted '%s'", args[0]))
			return nil
		})
	},
}

var lnCmd = &cobra.Command{
	Use:     "ln <source> <link>",
	Short:   "Create a snaplink to an object",
	Example: `  manta ln ~~/stor/file.txt ~~/public/file.txt`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cc *cli.CommandContext) error {
			if err := cc.LinkCommand(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			printResult(fmt.Sprintf("Linked '%s' to '%s'", args[1], args[0]))
			return nil
		})
	},
}

var signCmd = &cobra.Command{
	Use:   "sign <path>",
	Short: "Create a pre-signed URL",
	Example: `  manta sign ~~/stor/file.txt                    # GET, valid for one hour
  manta sign ~~/stor/file.txt -e 24h -m HEAD     # HEAD, valid for a day`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")     //nolint:errcheck // flags are validated by cobra
		expires, _ := cmd.Flags().GetDuration("expires") //nolint:errcheck // flags are validated by cobra
		return withClient(func(cc *cli.CommandContext) error {
			u, err := cc.SignCommand(method, args[0], expires)
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after flags, environment variables and the
configuration file have been merged. Secrets are masked.`,
	Example: `  manta config                                   # Show configuration
  manta config -o json                           # Show configuration as JSON`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print(cli.DisplayConfig(globalConfig, outputFormat()))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.UserAgent())
		return nil
	},
}

func init() {
	// Set custom usage template to always show examples (even on errors)
	cobra.AddTemplateFunc("hasExamples", func(cmd *cobra.Command) bool {
		return len(cmd.Example) > 0
	})

	usageTemplate := `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
	rootCmd.SetUsageTemplate(usageTemplate)

	// Global flags. Defaults live in config.Load so that unset flags do not
	// shadow the config file.
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.manta.yaml)")
	flags.String(config.KeyURL, "", "service URL")
	flags.String(config.KeyUser, "", "account name")
	flags.String(config.KeySubuser, "", "subuser name")
	flags.String(config.KeyKeyID, "", "public key fingerprint")
	flags.String(config.KeyKeyPath, "", "path to the private key")
	flags.String(config.KeyProtocol, "", "transport protocol: http or http3")
	flags.Duration(config.KeyTimeout, 0, "connect timeout")
	flags.String(config.KeyCAFile, "", "CA bundle for TLS verification")
	flags.Bool(config.KeyInsecureSkipVerify, false, "skip TLS certificate verification")
	flags.String(config.KeyLogLevel, "", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "", "log format: text or json")
	flags.StringP(config.KeyOutputFormat, "o", "", "output format (text, json, table)")

	putCmd.Flags().String("content-type", "", "content type of the object")
	putCmd.Flags().Int("copies", 0, "number of copies to store")
	putCmd.Flags().StringToString("header", map[string]string{}, "m-* metadata headers (key=value pairs)")
	putCmd.Flags().BoolP("parents", "p", false, "create missing parent directories")

	mkdirCmd.Flags().BoolP("parents", "p", false, "create missing parent directories")
	rmCmd.Flags().BoolP("recursive", "r", false, "delete directories recursively")

	signCmd.Flags().StringP("method", "m", "GET", "HTTP method the URL is valid for")
	signCmd.Flags().DurationP("expires", "e", time.Hour, "how long the URL stays valid")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lnCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(versionCmd)

	// Apply usage template to all commands to ensure examples always show
	for _, cmd := range rootCmd.Commands() {
		cmd.SetUsageTemplate(usageTemplate)
		for _, subCmd := range cmd.Commands() {
			subCmd.SetUsageTemplate(usageTemplate)
		}
	}
}
