package main

import (
	"flag"

	"github.com/emosense/authd/internal/auth"
	"github.com/emosense/authd/internal/config"
	"github.com/emosense/authd/internal/middleware"
	"github.com/emosense/authd/internal/otp"
	"github.com/emosense/authd/internal/server"
	"github.com/emosense/authd/internal/store"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	var configPath = flag.String("config", "", "path to yaml config file")
	flag.Parse()

	_ = godotenv.Load()

	newConfig := func() (*config.Config, error) {
		return config.Load(*configPath)
	}

	app := fx.New(
		fx.Provide(
			zap.NewDevelopment,
			newConfig,
			clockwork.NewRealClock,
			store.New,
			otp.NewLogSender,
			middleware.NewSessionManager,
			auth.New,
		),
		server.Module,
		fx.Invoke(server.RegisterHooks),
	)

	app.Run()
}
