/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

HandleWebSocket upgrades the request and hands the connection to the chat Manager, which
runs the client until it disconnects. Users identify themselves later with join_queue or
reconnect events, so the upgrade itself needs no parameters.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"strangerchat/internal/pkg/limiter"
	"strangerchat/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "ip", ip, "error", err.Error())
			return
		}

		logx.Info("WebSocket connection established", "ip", ip)

		deps.Manager.Serve(conn, ip)
	}
}
