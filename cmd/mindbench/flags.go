package main

import "github.com/urfave/cli/v3"

var (
	modelPath   string
	backendName string
	profileName string
	logLevel    string
	logFormat   string
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to the model file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "inference backend (toy, or an external registration)",
			Value:       "toy",
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "model profile name (unknown names use the default profile)",
			Destination: &profileName,
		},
	}
}

func commonLogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}
