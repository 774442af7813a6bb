// Command satsbot runs the Telegram bot that sells lightning invoices.
package main

import (
	"log"

	"github.com/m3rciful/satsbot/bot/config"
	"github.com/m3rciful/satsbot/bot/telegram"
	"github.com/m3rciful/satsbot/core/cmd"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: telegram.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
