package handlers

import (
	"net/http"
)

// WatchVideos upgrades to a websocket that receives the job list after every
// reconciliation pass. Polling runs only while at least one watcher is
// connected.
func (a *App) WatchVideos(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Manager.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	release := a.Reconciler.Observe()
	defer release()
	a.Hub.Serve(conn, jobs)
}
