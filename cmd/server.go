/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teniola/calldex/dev/config"
	"github.com/teniola/calldex/server"
	"github.com/teniola/calldex/utils"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a calldex server",
	Long:  `The calldex server houses the phone directory, contact book & spam reporting API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	// TODO: Make this required, when not in dev mode
	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	vConfig := viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	vConfig.SetConfigFile(serverConfigFile)
	vConfig.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := vConfig.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return vConfig
}

// devConfigFilePath returns the path to the dev server config,
// creating the file with default values if it doesn't exist yet.
func devConfigFilePath() string {
	rootDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configDir := filepath.Join(rootDir, "dev", "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "server.yml")
	if !utils.FileExist(configFilePath) {
		if err := ioutil.WriteFile(configFilePath, []byte(config.SERVER_YML), 0600); err != nil {
			log.Panic(err)
		}
	}

	return configFilePath
}
