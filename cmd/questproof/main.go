package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	var configPath string

	app := &cli.App{
		Name:  "questproof",
		Usage: "Wallet sign-in and proof-of-attempt quest server",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "config",
						Aliases:     []string{"c"},
						Usage:       "path to the YAML config, defaults apply when empty",
						EnvVars:     []string{"QUESTPROOF_CONFIG"},
						Destination: &configPath,
					},
				},
				Action: func(c *cli.Context) error {
					return serve(c.Context, configPath)
				},
			},
			{
				Name:   "keygen",
				Usage:  "Print a fresh wallet private key and its address",
				Action: keygen,
			},
			{
				Name:  "sign",
				Usage: "Sign a challenge message with personal_sign",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "hex private key",
						EnvVars:  []string{"QUESTPROOF_SIGNER_KEY"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "message text; use --file for multi-line challenges",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "read the message from a file, - for stdin",
					},
				},
				Action: sign,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
