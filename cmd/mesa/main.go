package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/mesa/internal/addon"
	"github.com/mesaops/mesa/internal/audit"
	"github.com/mesaops/mesa/internal/branch"
	"github.com/mesaops/mesa/internal/clock"
	"github.com/mesaops/mesa/internal/config"
	"github.com/mesaops/mesa/internal/db"
	"github.com/mesaops/mesa/internal/notify"
	"github.com/mesaops/mesa/internal/observability"
	"github.com/mesaops/mesa/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		branch.Module,
		notify.Module,

		audit.Module,
		addon.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
