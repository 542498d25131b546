package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/internal/chat"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

func fieldSummary(ae *session.APIError) string {
	keys := make([]string, 0, len(ae.Fields))
	for k := range ae.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("validation failed")
	for _, k := range keys {
		for _, msg := range ae.Fields[k] {
			fmt.Fprintf(&b, "\n  %s: %s", k, msg)
		}
	}
	return b.String()
}

func printMessages(w io.Writer, msgs []chat.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, dim("no messages"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range msgs {
		ts := "-"
		if t := m.Time(); !t.IsZero() {
			ts = t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ts, m.Username, m.Message)
	}
	_ = tw.Flush()
}

// readSecret returns flagVal, else one line from stdin when fromStdin is set,
// else the named environment variable.
func readSecret(cmd *cobra.Command, flagVal string, fromStdin bool, envKey string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("password required: use --password-stdin or %s", envKey)
}
