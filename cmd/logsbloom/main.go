package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	redisURIFlag = &cli.StringFlag{
		Name:    "redis-uri",
		Usage:   "redis:// uri of the server holding filters addressed with --redis-key",
		EnvVars: []string{"LOGSBLOOM_REDIS_URI"},
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	}
	bloomFlag = &cli.StringFlag{
		Name:    "bloom",
		Aliases: []string{"b"},
		Usage:   "hex encoded 256 byte filter to start from (default is an empty filter)",
	}
	redisKeyFlag = &cli.StringFlag{
		Name:    "redis-key",
		Aliases: []string{"k"},
		Usage:   "work on the filter stored at this redis key instead of --bloom",
	}
	legacyFlag = &cli.BoolFlag{
		Name:  "legacy",
		Usage: "look topics up with the legacy 9 bit mask",
	}
	withFlag = &cli.StringSliceFlag{
		Name:  "with",
		Usage: "hex encoded filter to merge in, can be repeated",
	}
	withKeyFlag = &cli.StringSliceFlag{
		Name:  "with-key",
		Usage: "redis key of a filter to merge in, can be repeated",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:   "logsbloom",
		Usage:  "build and query 2048 bit log bloom filters",
		Flags:  []cli.Flag{redisURIFlag, debugFlag},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:   "new",
				Usage:  "print an empty filter, or store one at --redis-key",
				Flags:  []cli.Flag{redisKeyFlag},
				Action: newFilter,
			},
			{
				Name:      "add",
				Usage:     "add hex encoded elements to a filter",
				ArgsUsage: "<element>...",
				Flags:     []cli.Flag{bloomFlag, redisKeyFlag},
				Action:    addElements,
			},
			{
				Name:      "check",
				Usage:     "print whether all hex encoded topics may be in a filter",
				ArgsUsage: "<topic>...",
				Flags:     []cli.Flag{bloomFlag, redisKeyFlag, legacyFlag},
				Action:    checkTopics,
			},
			{
				Name:   "union",
				Usage:  "merge filters into a filter",
				Flags:  []cli.Flag{bloomFlag, redisKeyFlag, withFlag, withKeyFlag},
				Action: unionFilters,
			},
			{
				Name:   "info",
				Usage:  "print the set bits and estimated false positive rate of a filter",
				Flags:  []cli.Flag{bloomFlag, redisKeyFlag},
				Action: filterInfo,
			},
		},
	}
}

func setupLogging(c *cli.Context) error {
	level := log.LevelInfo
	if c.Bool(debugFlag.Name) {
		level = log.LevelDebug
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(c.App.ErrWriter, level, false)))
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
