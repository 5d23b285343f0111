package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/smsbridge/inbox"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	addressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

const maxBodyWidth = 60

func newMessagesCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Print the most recent inbox messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			messages := a.adapter().Fetch(cmd.Context(), count)
			return writeMessages(cmd.OutOrStdout(), a.format, messages)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", inbox.DefaultFetchCount, "Number of messages to print")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print recent inbox messages whose sender or body contains query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			messages := a.adapter().Search(cmd.Context(), query, limit)
			return writeMessages(cmd.OutOrStdout(), a.format, messages)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", inbox.DefaultSearchLimit, "Maximum number of messages to print")
	return cmd
}

func writeMessages(w io.Writer, format string, messages []inbox.Message) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(messages)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(messages)
	case "table", "":
		return writeTable(w, messages)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

func writeTable(w io.Writer, messages []inbox.Message) error {
	if len(messages) == 0 {
		_, err := fmt.Fprintln(w, headerStyle.Render("No messages found"))
		return err
	}

	if _, err := fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d message(s)", len(messages)))); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, titleStyle.Render("DATE")+"\t"+titleStyle.Render("FROM")+"\t"+titleStyle.Render("BODY"))
	for _, m := range messages {
		date := time.UnixMilli(m.Date).UTC().Format("2006-01-02 15:04")
		_, _ = fmt.Fprintln(tw, dateStyle.Render(date)+"\t"+addressStyle.Render(textOr(m.Address, "—"))+"\t"+truncate(oneLine(textOr(m.Body, "")), maxBodyWidth))
	}
	return tw.Flush()
}

func textOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
