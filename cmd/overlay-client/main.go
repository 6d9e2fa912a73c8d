package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ruteri/dexcom-browser-source/api/clients"
	"github.com/ruteri/dexcom-browser-source/cmd/flags"
	"github.com/urfave/cli/v2"
)

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 15 * time.Second,
	Usage: "request timeout",
}

var flagUnit = &cli.StringFlag{
	Name:  "unit",
	Usage: "unit token (mgdl or mmol), defaults to the server's configured unit",
}

var flagHours = &cli.IntFlag{
	Name:  "hours",
	Usage: "chart window in hours (1-24), defaults to the server's configured window",
}

var flagOutput = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Value:   "chart.png",
	Usage:   "file to write the chart to",
}

func newClient(cCtx *cli.Context) *clients.OverlayClient {
	return &clients.OverlayClient{
		ServerAddr: cCtx.String(flags.ServerAddrFlag.Name),
		HTTPClient: &http.Client{Timeout: cCtx.Duration(flagTimeout.Name)},
	}
}

func main() {
	app := &cli.App{
		Name:  "overlay-client",
		Usage: "Query a running browser-source overlay server",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flagTimeout,
		},
		Commands: []*cli.Command{
			{
				Name:  "current",
				Usage: "print the current reading",
				Flags: []cli.Flag{flagUnit},
				Action: func(cCtx *cli.Context) error {
					c := newClient(cCtx)
					var (
						value string
						err   error
					)
					if unit := cCtx.String(flagUnit.Name); unit != "" {
						value, err = c.CurrentIn(cCtx.Context, unit)
					} else {
						value, err = c.Current(cCtx.Context)
					}
					if err != nil {
						return err
					}
					fmt.Println(value)
					return nil
				},
			},
			{
				Name:  "trend",
				Usage: "print the current trend",
				Action: func(cCtx *cli.Context) error {
					trend, err := newClient(cCtx).Trend(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Printf("%s %s\n", trend.Arrow, trend.Category)
					return nil
				},
			},
			{
				Name:  "graph",
				Usage: "download the chart",
				Flags: []cli.Flag{flagHours, flagOutput},
				Action: func(cCtx *cli.Context) error {
					img, err := newClient(cCtx).Graph(cCtx.Context, cCtx.Int(flagHours.Name))
					if err != nil {
						return err
					}
					output := cCtx.String(flagOutput.Name)
					if err := os.WriteFile(output, img, 0o644); err != nil {
						return fmt.Errorf("could not write chart: %w", err)
					}
					fmt.Printf("wrote %d bytes to %s\n", len(img), output)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
