package handlers

import (
	"github.com/quailsoft/transq/internal/config"
	"github.com/quailsoft/transq/internal/engine"
	"github.com/quailsoft/transq/internal/history"
	"github.com/quailsoft/transq/internal/prompt"
)

type Handler struct {
	Cfg     config.Config
	Engine  *engine.Engine
	History *history.Repo
	Hub     *engine.Hub
	Presets *prompt.Registry
}

func NewHandler(cfg config.Config, eng *engine.Engine, repo *history.Repo, hub *engine.Hub, presets *prompt.Registry) *Handler {
	return &Handler{
		Cfg:     cfg,
		Engine:  eng,
		History: repo,
		Hub:     hub,
		Presets: presets,
	}
}
