package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ollama/fsmindex/api"
	"github.com/ollama/fsmindex/envconfig"
	"github.com/ollama/fsmindex/grammar"
)

// whitespace returns the --whitespace flag, falling back to
// FSMINDEX_WHITESPACE.
func whitespace(cmd *cobra.Command) (string, bool) {
	if cmd.Flags().Changed("whitespace") {
		ws, _ := cmd.Flags().GetString("whitespace")
		return ws, true
	}
	return envconfig.Whitespace()
}

func SchemaHandler(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) > 0 {
		path = args[0]
	}

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	ws, wsOK := whitespace(cmd)

	var pattern string
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		req := api.SchemaRequest{Schema: data}
		if wsOK {
			req.Whitespace = &ws
		}
		resp, err := client.Schema(cmd.Context(), &req)
		if err != nil {
			return err
		}
		pattern = resp.Pattern
	} else {
		var opts []grammar.Option
		if wsOK {
			opts = append(opts, grammar.WithWhitespace(ws))
		}
		pattern, err = grammar.BuildRegexFromSchema(data, opts...)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), pattern)
	return nil
}
