package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	bufordpush "github.com/RobotsAndPencils/buford/push"
	"github.com/WatchBeam/clock"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pushgate/pushgate/pkg/pushhttp"
	"github.com/pushgate/pushgate/server/config"
	"github.com/pushgate/pushgate/server/datastore/mysql"
	"github.com/pushgate/pushgate/server/health"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/push/apns"
	"github.com/pushgate/pushgate/server/push/fcm"
	"github.com/pushgate/pushgate/server/push/webpush"
	"github.com/pushgate/pushgate/server/pushgate"
	"github.com/pushgate/pushgate/server/service"
)

func createServeCmd(configManager config.Manager) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch the pushd server",
		Long: `
Launch the pushd server

Use pushd serve to run the main HTTP service that resolves recipients and
dispatches push notifications.
`,
		Run: func(cmd *cobra.Command, args []string) {
			config := configManager.LoadConfig()
			logger := initLogger(config)

			ds, err := mysql.New(config.Mysql, clock.C, mysql.Logger(logger))
			if err != nil {
				initFatal(err, "initializing datastore")
			}
			defer ds.Close()

			if err := ds.MigrateTables(context.Background()); err != nil {
				initFatal(err, "migrating db schema")
			}

			providerClient := pushhttp.NewClient(pushhttp.WithTimeout(config.Push.RequestTimeout))

			registry := push.NewRegistry()
			registry.Register(pushgate.VariantTypeIOS,
				apns.NewSenderFactory(
					apns.WithWorkers(config.Push.SendWorkers),
					apns.WithNewClient(func(cert tls.Certificate) (*http.Client, error) {
						client, err := bufordpush.NewClient(cert)
						if err != nil {
							return nil, err
						}
						// a hung provider session must not starve other dispatches
						client.Timeout = config.Push.RequestTimeout
						return client, nil
					}),
				))
			registry.Register(pushgate.VariantTypeAndroid,
				fcm.NewSenderFactory(fcm.WithClient(providerClient)))
			registry.Register(pushgate.VariantTypeSimplePush,
				webpush.NewSenderFactory(webpush.WithClient(providerClient)))

			metrics := service.NewMetrics(prometheus.DefaultRegisterer)

			reaper := service.NewReaper(ds, kitlog.With(logger, "component", "reaper"),
				service.WithReaperWorkers(config.Push.ReaperWorkers),
				service.WithReaperQueueSize(config.Push.ReaperQueueSize),
				service.WithReaperMetrics(metrics),
			)
			defer reaper.Close()

			svc := service.NewService(ds, registry, reaper,
				kitlog.With(logger, "component", "service"),
				service.WithMetrics(metrics),
			)

			handler := service.MakeHandler(svc, kitlog.With(logger, "component", "http"),
				map[string]health.Checker{"mysql": ds})

			srv := &http.Server{
				Addr:    config.Server.Address,
				Handler: handler,
			}

			errs := make(chan error, 2)
			go func() {
				level.Info(logger).Log("msg", "listening", "transport", "http", "address", config.Server.Address)
				errs <- srv.ListenAndServe()
			}()
			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				<-sig
				errs <- srv.Shutdown(context.Background())
			}()

			level.Info(logger).Log("msg", "terminated", "err", <-errs)
		},
	}

	return serveCmd
}

func initLogger(config config.PushdConfig) kitlog.Logger {
	var logger kitlog.Logger
	if config.Logging.JSON {
		logger = kitlog.NewJSONLogger(kitlog.NewSyncWriter(os.Stderr))
	} else {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	}
	if config.Logging.Debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}
