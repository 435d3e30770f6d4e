package api

import (
	"serwer-gabinetu/internal/config"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/sharing"
	"serwer-gabinetu/internal/websocket"
)

type Server struct {
	config  *config.Config
	store   *database.Store
	sharing *sharing.Service
	wsHub   *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.Store, sharingService *sharing.Service, wsHub *websocket.Hub) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		sharing: sharingService,
		wsHub:   wsHub,
	}
}
