// Command kvrepl is a thin, scriptable front end over the fixed-width
// B-tree engine: read/write/delete/stop, one per line on stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/clamshell-db/kvbtree/btree"
)

func main() {
	app := &cli.App{
		Name:  "kvrepl",
		Usage: "interactive shell over a fixed-width B-tree key-value store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pages",
				Value: "kv.pages",
				Usage: "path to the page file",
			},
			&cli.StringFlag{
				Name:  "wal",
				Value: "kv.wal",
				Usage: "path to the write-ahead log",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := btree.DefaultConfig()
	cfg.Logger = logger

	engine, err := btree.Open(afero.NewOsFs(), c.String("pages"), c.String("wal"), cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch strings.ToLower(fields[0]) {
		case "read":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: read <key>")
				continue
			}
			key, err := parseUint16(fields[1])
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			if val, ok := engine.Read(key); ok {
				fmt.Fprintln(out, val)
			} else {
				fmt.Fprintln(out, "not found")
			}

		case "write":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: write <key> <value>")
				continue
			}
			key, err := parseUint16(fields[1])
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			val, err := parseUint16(fields[2])
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			if err := engine.Write(key, val); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "ok")

		case "delete":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: delete <key>")
				continue
			}
			key, err := parseUint16(fields[1])
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			if err := engine.Delete(key); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "ok")

		case "stop":
			out.Flush()
			return engine.Close()

		default:
			fmt.Fprintln(out, "unknown command:", fields[0])
		}
		out.Flush()
	}

	return engine.Close()
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid uint16", s)
	}
	return uint16(n), nil
}
