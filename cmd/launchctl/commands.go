package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/ashureev/mention-launcher/internal/parser"
)

type clientFunc func() *apiClient

type jsonFunc func() bool

func newStatusCmd(client clientFunc, asJSON jsonFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether monitoring is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status domain.MonitorStatus
			if err := client().call(cmd.Context(), http.MethodGet, "/api/twitter/status", nil, &status); err != nil {
				return err
			}
			if asJSON() {
				return writeJSON(cmd, status)
			}
			return printStatus(cmd, status)
		},
	}
}

func printStatus(cmd *cobra.Command, status domain.MonitorStatus) error {
	state := "stopped"
	if status.IsMonitoring {
		state = "running"
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "monitoring: %s\nprocessed: %d\n", state, status.ProcessedTweetsCount); err != nil {
		return err
	}
	if status.Message != "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), status.Message)
		return err
	}
	return nil
}

type startResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Status  domain.MonitorStatus `json:"status"`
}

func newStartCmd(client clientFunc, asJSON jsonFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start mention monitoring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp startResponse
			if err := client().call(cmd.Context(), http.MethodPost, "/api/twitter/start-monitoring", nil, &resp); err != nil {
				return err
			}
			if asJSON() {
				return writeJSON(cmd, resp)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Message); err != nil {
				return err
			}
			return printStatus(cmd, resp.Status)
		},
	}
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func newStopCmd(client clientFunc, asJSON jsonFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop mention monitoring after the current mention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp messageResponse
			if err := client().call(cmd.Context(), http.MethodPost, "/api/twitter/stop-monitoring", nil, &resp); err != nil {
				return err
			}
			if asJSON() {
				return writeJSON(cmd, resp)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return err
		},
	}
}

type launchRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func newLaunchCmd(client clientFunc, asJSON jsonFunc) *cobra.Command {
	var req launchRequest

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a token directly, bypassing mentions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out domain.LaunchOutcome
			if err := client().call(cmd.Context(), http.MethodPost, "/api/twitter/manual-launch", req, &out); err != nil {
				return err
			}
			if asJSON() {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else if out.Success {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "launched %s ($%s)\nmint: %s\nsignature: %s\n",
					req.Name, req.Symbol, out.MintAddress, out.TransactionSignature); err != nil {
					return err
				}
			}
			if !out.Success {
				return fmt.Errorf("launch failed: %s", out.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "token name")
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "token ticker")
	cmd.Flags().StringVar(&req.Description, "description", "", "token description")
	cmd.Flags().StringVar(&req.ImageURL, "image-url", "", "image to attach to the token metadata")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symbol")

	return cmd
}

type parseResult struct {
	Input   string               `json:"input"`
	Parsed  *domain.TokenRequest `json:"parsed"`
	IsValid bool                 `json:"isValid"`
}

// parse runs locally; the server's test-parse endpoint uses the same parser.
func newParseCmd(asJSON jsonFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a mention would be parsed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			res := parseResult{Input: text}
			if req, ok := parser.Parse(text); ok {
				res.Parsed = &req
				res.IsValid = parser.IsValid(req)
			}
			if asJSON() {
				return writeJSON(cmd, res)
			}
			if res.Parsed == nil {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no launch request found")
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "name: %s\nticker: %s\nvalid: %t\n",
				res.Parsed.Name, res.Parsed.Ticker, res.IsValid)
			return err
		},
	}
}

type historyResponse struct {
	Success bool                  `json:"success"`
	Records []domain.LaunchRecord `json:"records"`
}

func newHistoryCmd(client clientFunc, asJSON jsonFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled launches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/twitter/history"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}

			var resp historyResponse
			if err := client().call(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if asJSON() {
				return writeJSON(cmd, resp.Records)
			}
			if len(resp.Records) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no launches recorded")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSOURCE\tTOKEN\tRESULT\tMINT")
			for _, rec := range resp.Records {
				result := "ok"
				if !rec.Success {
					result = "failed: " + rec.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s ($%s)\t%s\t%s\n",
					rec.CreatedAt.Local().Format(time.DateTime), rec.Source, rec.Name, rec.Ticker, result, rec.Mint)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to show (server default when 0)")
	return cmd
}
