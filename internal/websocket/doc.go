// Package websocket pushes session events to dashboard browsers.
//
// Each client watches exactly one session. The hub delivers an event only to
// the clients of the session it was published for:
//
//	hub := websocket.NewHub(logger, metrics)
//	hub.Start()
//	defer hub.Stop()
//
//	hub.Publish(ctx, sessionID, websocket.TypeDatasetReady, summary)
//
// Publishing never blocks the caller. Clients that cannot keep up are
// disconnected.
package websocket
