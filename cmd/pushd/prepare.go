package main

import (
	"context"

	"github.com/WatchBeam/clock"
	"github.com/spf13/cobra"

	"github.com/pushgate/pushgate/server/config"
	"github.com/pushgate/pushgate/server/datastore/mysql"
)

func createPrepareCmd(configManager config.Manager) *cobra.Command {
	prepareCmd := &cobra.Command{
		Use:   "prepare",
		Short: "Subcommands for initializing pushd infrastructure",
	}

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Create the database tables",
		Run: func(cmd *cobra.Command, args []string) {
			config := configManager.LoadConfig()
			ds, err := mysql.New(config.Mysql, clock.C)
			if err != nil {
				initFatal(err, "connecting to db")
			}
			defer ds.Close()

			if err := ds.MigrateTables(context.Background()); err != nil {
				initFatal(err, "migrating db schema")
			}
		},
	}

	prepareCmd.AddCommand(dbCmd)
	return prepareCmd
}
