package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ollama/fsmindex/api"
	"github.com/ollama/fsmindex/fsm"
	"github.com/ollama/fsmindex/server"
)

func WalkHandler(cmd *cobra.Command, args []string) error {
	info, err := loadInfo(cmd)
	if err != nil {
		return err
	}

	startFlag, _ := cmd.Flags().GetInt64("start")
	full, _ := cmd.Flags().GetBool("full")
	frozenFlag, _ := cmd.Flags().GetStringSlice("frozen")

	start := info.Initial
	if startFlag >= 0 {
		start = fsm.State(startFlag)
	}

	req := api.WalkRequest{
		FSM:       info,
		Text:      args[0],
		Frozen:    frozenFlag,
		Start:     &start,
		FullMatch: full,
	}

	var resp api.WalkResponse
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		r, err := client.Walk(cmd.Context(), &req)
		if err != nil {
			return err
		}
		resp = *r
	} else {
		resp = server.Walk(&req)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keys:    %s\n", join(resp.Keys))
	fmt.Fprintf(out, "states:  %s\n", join(resp.States))
	fmt.Fprintf(out, "matched: %t\n", resp.Matched)
	fmt.Fprintf(out, "final:   %t\n", resp.Final)
	return nil
}

func join[T fsm.State | fsm.Key | fsm.TokenID](vs []T) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = fmt.Sprint(v)
	}
	return strings.Join(s, " ")
}
