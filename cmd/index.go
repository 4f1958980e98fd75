package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/fsmindex/api"
	"github.com/ollama/fsmindex/format"
	"github.com/ollama/fsmindex/fsm"
	"github.com/ollama/fsmindex/progress"
	"github.com/ollama/fsmindex/tokenizer"
)

// loadVocabulary reads the vocabulary named by --vocab or --tokenizer. A
// tokenizer also contributes its control and user defined tokens to the
// frozen set.
func loadVocabulary(cmd *cobra.Command) (fsm.Vocabulary, map[string]struct{}, error) {
	vocabPath, _ := cmd.Flags().GetString("vocab")
	tokenizerPath, _ := cmd.Flags().GetString("tokenizer")

	frozen := make(map[string]struct{})
	switch {
	case tokenizerPath != "":
		f, err := os.Open(tokenizerPath)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()

		v, err := tokenizer.ParseTokenizerJSON(f)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", tokenizerPath, err)
		}
		maps.Copy(frozen, v.Frozen())
		return v.Entries(), frozen, nil
	case vocabPath != "":
		data, err := readInput(cmd, vocabPath)
		if err != nil {
			return nil, nil, err
		}

		vocab, err := tokenizer.ReadVocabularyJSON(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", vocabPath, err)
		}
		return vocab, frozen, nil
	default:
		return nil, nil, errors.New("one of --vocab or --tokenizer is required")
	}
}

func IndexHandler(cmd *cobra.Command, _ []string) error {
	info, err := loadInfo(cmd)
	if err != nil {
		return err
	}

	vocab, frozen, err := loadVocabulary(cmd)
	if err != nil {
		return err
	}

	frozenFlag, _ := cmd.Flags().GetStringSlice("frozen")
	for _, t := range frozenFlag {
		frozen[t] = struct{}{}
	}

	encoding, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if encoding != "json" && encoding != "cbor" {
		return fmt.Errorf("unknown format %q, expected json or cbor", encoding)
	}
	if encoding == "cbor" && output == "-" && isTerminal(cmd.OutOrStdout()) {
		return errors.New("refusing to write a binary index to a terminal, use --output")
	}

	stop := func() {}
	if isTerminal(cmd.ErrOrStderr()) {
		p := progress.NewProgress(cmd.ErrOrStderr())
		p.Add(progress.NewSpinner(fmt.Sprintf("indexing %s tokens", format.HumanNumber(uint64(vocab.Len())))))
		stop = func() { p.StopAndClear() }
	}
	defer stop()

	start := time.Now()
	var ix fsm.Index
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		resp, err := client.Index(cmd.Context(), &api.IndexRequest{
			FSM:        info,
			Vocabulary: vocab,
			Frozen:     slices.Sorted(maps.Keys(frozen)),
		})
		if err != nil {
			return err
		}
		ix = resp.Index
	} else {
		parallel, _ := cmd.Flags().GetInt("parallel")
		ix, err = fsm.BuildIndexParallel(cmd.Context(), info, vocab, frozen, parallel)
		if err != nil {
			return err
		}
	}

	stop()

	var buf bytes.Buffer
	switch encoding {
	case "json":
		err = json.NewEncoder(&buf).Encode(ix)
	case "cbor":
		err = ix.EncodeCBOR(&buf)
	}
	if err != nil {
		return err
	}

	size := int64(buf.Len())
	if output == "-" {
		if _, err := io.Copy(cmd.OutOrStdout(), &buf); err != nil {
			return err
		}
	} else if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return err
	}

	stats := ix.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "indexed %s tokens: %s states, %s transitions, %s in %s\n",
		format.HumanNumber(uint64(vocab.Len())),
		format.HumanNumber(uint64(stats.States)),
		format.HumanNumber(uint64(stats.Transitions)),
		format.HumanBytes(size),
		time.Since(start).Round(time.Millisecond))
	return nil
}

func InspectHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ix, err := fsm.ReadIndex(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	var info *fsm.Info
	if path, _ := cmd.Flags().GetString("fsm"); path != "" {
		if info, err = loadInfo(cmd); err != nil {
			return err
		}
	}

	limit, _ := cmd.Flags().GetInt("limit")

	header := []string{"STATE", "TOKENS", "NEXT", "ALLOWED"}
	if info != nil {
		header = append(header, "FINAL")
	}

	var data [][]string
	for _, s := range ix.States() {
		allowed := ix.AllowedTokens(s)

		next := make(map[fsm.State]struct{})
		for _, to := range ix[s] {
			next[to] = struct{}{}
		}

		sample := allowed
		if limit >= 0 && len(sample) > limit {
			sample = sample[:limit]
		}
		tokens := join(sample)
		if len(sample) < len(allowed) {
			tokens += " ..."
		}

		row := []string{
			strconv.FormatUint(uint64(s), 10),
			format.HumanNumber(uint64(len(allowed))),
			join(slices.Sorted(maps.Keys(next))),
			tokens,
		}
		if info != nil {
			row = append(row, strconv.FormatBool(info.IsFinal(s)))
		}
		data = append(data, row)
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		fmt.Fprintln(out, strings.Join(header, "\t"))
		for _, row := range data {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	stats := ix.Stats()
	fmt.Fprintf(out, "\n%s states, %s transitions, %s dead ends, at most %s tokens per state\n",
		format.HumanNumber(uint64(stats.States)),
		format.HumanNumber(uint64(stats.Transitions)),
		format.HumanNumber(uint64(stats.DeadEnds)),
		format.HumanNumber(uint64(stats.MaxTokens)))
	return nil
}
