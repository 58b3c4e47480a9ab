package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/scorebook-backend/internal/rules"
)

func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with round-engine rule files",
	}
	cmd.AddCommand(newRulesCheckCommand(rootOpts))
	cmd.AddCommand(newRulesPlayCommand(rootOpts))
	return cmd
}

type checkResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func newRulesCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.yaml>...",
		Short: "Compile rule files and report every problem",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []checkResult
			failed := 0
			for _, path := range args {
				res := checkResult{File: path, OK: true}
				def, err := rules.LoadFile(path)
				if err == nil {
					res.Name = def.Name
					_, err = rules.Compile(def)
				}
				if err != nil {
					res.OK = false
					failed++
					for _, e := range multierr.Errors(err) {
						res.Errors = append(res.Errors, e.Error())
					}
				}
				results = append(results, res)
			}

			if rootOpts.Format == "json" {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.OK {
						fmt.Fprintf(cmd.OutOrStdout(), "ok    %s (%s)\n", r.File, r.Name)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s\n", r.File)
					for _, e := range r.Errors {
						fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", e)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rule files failed", failed, len(args))
			}
			return nil
		},
	}
}

func newRulesPlayCommand(rootOpts *RootOptions) *cobra.Command {
	var players string
	cmd := &cobra.Command{
		Use:   "play <file.yaml> <events.json>",
		Short: "Run a JSON array of events through a rule file and print the totals",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := rules.LoadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := rules.Compile(def)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			var events []rules.Event
			if err := json.Unmarshal(data, &events); err != nil {
				return fmt.Errorf("decode %s: %w", args[1], err)
			}

			e, err := rules.New(cfg, "offline", strings.Split(players, ","))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, evt := range events {
				if res := e.SubmitEvent(evt); !res.Accepted {
					fmt.Fprintf(out, "event %d (%s) rejected: %s\n", i, evt.Type, res.Reason)
				}
			}

			state := e.State()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(state)
			}
			fmt.Fprintf(out, "%s after %d completed rounds\n", cfg.Name, state.CompletedRounds())
			for _, ps := range state.Totals() {
				fmt.Fprintf(out, "  %-12s %5d  (bonus %d, penalty %d, rounds won %d)\n",
					ps.PlayerID, ps.Points, ps.Bonuses, ps.Penalties, ps.RoundsWon)
			}
			if state.EndedAt != nil {
				fmt.Fprintf(out, "winners: %s\n", strings.Join(state.WinnerIDs, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&players, "players", "", "comma separated player ids in seat order (required)")
	_ = cmd.MarkFlagRequired("players")
	return cmd
}
