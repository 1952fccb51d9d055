package handler

import (
	"strangerchat/internal/app/chat"
	"strangerchat/internal/app/match"
	"strangerchat/internal/app/tokens"
	"strangerchat/internal/configs"
)

// EngineInspector exposes the engine counters to the admin surface.
type EngineInspector interface {
	Snapshot() match.Stats
}

type AppDeps struct {
	Config  *configs.AppConfig
	Manager *chat.Manager
	Engine  EngineInspector
	Tokens  tokens.Store
}
