package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/fsmindex/api"
	"github.com/ollama/fsmindex/envconfig"
	"github.com/ollama/fsmindex/fsm"
	"github.com/ollama/fsmindex/logutil"
	"github.com/ollama/fsmindex/server"
	"github.com/ollama/fsmindex/version"
)

func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Warning: could not connect to a running fsmindex instance")
	}

	if serverVersion != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "fsmindex version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: client version is %s\n", version.Version)
	}
}

func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var data [][]string
	for _, k := range keys {
		v := vars[k]
		value := fmt.Sprintf("%v", v.Value)
		if s, ok := v.Value.([]string); ok {
			value = strings.Join(s, ",")
		}
		data = append(data, []string{v.Name, value, v.Description})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	return nil
}

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// isTerminal reports whether w writes to an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func loadInfo(cmd *cobra.Command) (*fsm.Info, error) {
	path, err := cmd.Flags().GetString("fsm")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := fsm.ReadInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "fsmindex",
		Short:         "Token indexes for structured generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	schemaCmd := &cobra.Command{
		Use:   "schema [FILE]",
		Short: "Compile a JSON Schema into a regular expression",
		Long:  "Compile a JSON Schema into a regular expression. The schema is read from FILE, or standard input when FILE is omitted or \"-\".",
		Args:  cobra.MaximumNArgs(1),
		RunE:  SchemaHandler,
	}
	schemaCmd.Flags().String("whitespace", "", "Pattern allowed between JSON tokens (default \"[ ]?\")")
	schemaCmd.Flags().Bool("remote", false, "Compile on the fsmindex server")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the token index of an automaton",
		Args:  cobra.NoArgs,
		RunE:  IndexHandler,
	}
	indexCmd.Flags().String("fsm", "", "Automaton descriptor (JSON)")
	indexCmd.Flags().String("vocab", "", "Vocabulary as a JSON list of {\"text\", \"ids\"}")
	indexCmd.Flags().String("tokenizer", "", "Hugging Face tokenizer.json to read the vocabulary from")
	indexCmd.Flags().StringSlice("frozen", nil, "Tokens matched as a single symbol")
	indexCmd.Flags().Int("parallel", envconfig.NumParallel(), "Goroutines used to scan each frontier")
	indexCmd.Flags().String("format", "json", "Output format (json or cbor)")
	indexCmd.Flags().StringP("output", "o", "-", "Write the index to this file")
	indexCmd.Flags().Bool("remote", false, "Build on the fsmindex server")
	indexCmd.MarkFlagRequired("fsm")
	indexCmd.MarkFlagsMutuallyExclusive("vocab", "tokenizer")

	inspectCmd := &cobra.Command{
		Use:   "inspect INDEX",
		Short: "Show the states of a token index",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
	inspectCmd.Flags().String("fsm", "", "Automaton descriptor, to mark final states")
	inspectCmd.Flags().Int("limit", 8, "Tokens listed per state")

	walkCmd := &cobra.Command{
		Use:   "walk TEXT",
		Short: "Walk text through an automaton",
		Args:  cobra.ExactArgs(1),
		RunE:  WalkHandler,
	}
	walkCmd.Flags().String("fsm", "", "Automaton descriptor (JSON)")
	walkCmd.Flags().Int64("start", -1, "State to start from (default the initial state)")
	walkCmd.Flags().Bool("full", false, "Require every character to be consumed")
	walkCmd.Flags().StringSlice("frozen", nil, "Tokens matched as a single symbol")
	walkCmd.Flags().Bool("remote", false, "Walk on the fsmindex server")
	walkCmd.MarkFlagRequired("fsm")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start fsmindex",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show configuration from the environment",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	vars := envconfig.AsMap()
	envs := []envconfig.EnvVar{vars["FSMINDEX_DEBUG"]}
	for _, cmd := range []*cobra.Command{
		schemaCmd,
		indexCmd,
		walkCmd,
		serveCmd,
	} {
		switch cmd {
		case schemaCmd:
			appendEnvDocs(cmd, append(envs, vars["FSMINDEX_WHITESPACE"], vars["FSMINDEX_HOST"]))
		case indexCmd:
			appendEnvDocs(cmd, append(envs, vars["FSMINDEX_NUM_PARALLEL"], vars["FSMINDEX_HOST"]))
		case walkCmd:
			appendEnvDocs(cmd, append(envs, vars["FSMINDEX_HOST"]))
		case serveCmd:
			appendEnvDocs(cmd, append(envs,
				vars["FSMINDEX_HOST"],
				vars["FSMINDEX_ORIGINS"],
				vars["FSMINDEX_NUM_PARALLEL"],
				vars["FSMINDEX_MAX_BODY"],
				vars["FSMINDEX_WHITESPACE"],
			))
		}
	}

	rootCmd.AddCommand(
		schemaCmd,
		indexCmd,
		inspectCmd,
		walkCmd,
		serveCmd,
		envCmd,
	)

	return rootCmd
}
