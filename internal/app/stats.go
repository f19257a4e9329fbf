package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/thenotsodarkknight/based/internal/cli"
)

type namespaceStats struct {
	Namespace string `json:"namespace"`
	Prefix    string `json:"prefix"`
	Objects   int    `json:"objects"`
}

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, cfg, st, err := connectStore(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		return 1
	}
	defer cancel()
	defer st.Close()

	globalHandles, err := st.List(ctx, cfg.GlobalPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: list global namespace: %v\n", err)
		return 1
	}
	personaHandles, err := st.List(ctx, cfg.PersonaPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: list persona namespace: %v\n", err)
		return 1
	}

	stats := []namespaceStats{
		{Namespace: "global", Prefix: cfg.GlobalPrefix, Objects: len(globalHandles)},
		{Namespace: "personas", Prefix: cfg.PersonaPrefix, Objects: len(personaHandles)},
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"namespaces": stats}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode stats: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(stats))
	for _, row := range stats {
		rows = append(rows, []string{row.Namespace, row.Prefix, strconv.Itoa(row.Objects)})
	}
	if err := writeTable([]string{"NAMESPACE", "PREFIX", "OBJECTS"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats: %v\n", err)
		return 1
	}
	return 0
}
