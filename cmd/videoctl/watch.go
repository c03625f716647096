package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"sorastudio/internal/realtime"
)

const clearScreen = "\x1b[H\x1b[2J"

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow job updates live",
		Long:  "Connects to the API's watch stream. Status polling runs on the server while at least one watcher is connected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tty := isTerminal(out)
			return watchJobs(cmd.Context(), ctx.client(), func(update realtime.Update) bool {
				if ctx.asJSON {
					_ = writeJSON(out, update)
				} else {
					if tty {
						fmt.Fprint(out, clearScreen)
					}
					fmt.Fprintf(out, "Updated %s\n", update.At.Local().Format(time.TimeOnly))
					renderJobs(out, update.Jobs, time.Now(), tty)
				}
				return !once
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Exit after the first snapshot")
	return cmd
}

// watchJobs reads updates until handle returns false, ctx is done or the
// server closes the stream.
func watchJobs(ctx context.Context, client *apiClient, handle func(realtime.Update) bool) error {
	target, err := client.watchURL()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, client.authHeader())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeAPIError(resp)
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var update realtime.Update
		if err := conn.ReadJSON(&update); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !handle(update) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		}
	}
}
