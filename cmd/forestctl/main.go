package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cl "forest/internal/cli"
	"forest/internal/config"
	"forest/internal/game"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	serverURL := cfg.ServerURL
	if prefs, err := cl.LoadPrefs(); err == nil && prefs.ServerURL != "" {
		serverURL = prefs.ServerURL
	}

	root := &cobra.Command{
		Use:          "forestctl",
		Short:        "Forest room economy client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", serverURL, "server base URL")

	root.AddCommand(
		newRoomsCmd(&serverURL),
		newJoinCmd(&serverURL),
		newTransferCmd(&serverURL),
		newSetCmd(&serverURL),
		newHistoryCmd(&serverURL),
		newWatchCmd(&serverURL),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRoomsCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms and occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*serverURL, "/")+"/v1/rooms", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			var payload struct {
				Rooms map[string]game.RoomView `json:"rooms"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return err
			}
			renderRooms(payload.Rooms)
			return nil
		},
	}
}

func newJoinCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Join a room and stream live updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := strings.TrimSpace(args[0])

			client, err := cl.Dial(*serverURL)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			result, err := client.JoinRoom(ctx, roomID)
			cancel()
			if err != nil {
				return err
			}
			if !result.Success {
				printError("Join failed: " + result.Message)
				return nil
			}
			if err := savePrefs(*serverURL, roomID); err != nil {
				printWarn("Could not save preferences: " + err.Error())
			}

			if result.Points != nil {
				printSuccess(fmt.Sprintf("Joined %s with %d points.", roomID, *result.Points))
			} else {
				printSuccess("Joined " + roomID + ".")
			}
			renderHistory(result.History)
			printInfo("Streaming updates. Ctrl-C to leave.")

			return streamEvents(cmd.Context(), client)
		},
	}
}

func newTransferCmd(serverURL *string) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer points from your room to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := strings.TrimSpace(args[0])
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount must be a whole number: %q", args[1])
			}
			if from == "" {
				prefs, err := cl.LoadPrefs()
				if err != nil || prefs.LastRoom == "" {
					return fmt.Errorf("no room on record; pass --from or join a room first")
				}
				from = prefs.LastRoom
			}

			client, err := cl.Dial(*serverURL)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			join, err := client.JoinRoom(ctx, from)
			if err != nil {
				return err
			}
			if !join.Success {
				printError("Cannot act as " + from + ": " + join.Message)
				return nil
			}

			result, err := client.TransferPoints(ctx, from, to, amount)
			if err != nil {
				return err
			}
			if !result.Success {
				printError("Transfer failed: " + result.Message)
				return nil
			}
			printSuccess(fmt.Sprintf("Transferred %d points from %s to %s.", amount, from, to))
			renderHistory(result.History)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source room (defaults to your last joined room)")
	return cmd
}

func newSetCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <room> <points>",
		Short: "Set a room's balance (requires the GM room to be free)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := strings.TrimSpace(args[0])
			points, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("points must be a whole number: %q", args[1])
			}

			client, err := cl.Dial(*serverURL)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			join, err := client.JoinRoom(ctx, game.GMRoomID)
			if err != nil {
				return err
			}
			if !join.Success {
				printError("Cannot enter the GM room: " + join.Message)
				return nil
			}

			result, err := client.UpdateRoomPoints(ctx, roomID, points)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s: %d -> %d points.", result.RoomID, result.OldPoints, result.NewPoints))
			return nil
		},
	}
}

func newHistoryCmd(serverURL *string) *cobra.Command {
	var asGM bool
	cmd := &cobra.Command{
		Use:   "history [room]",
		Short: "Show a room's transaction history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := ""
			if len(args) == 1 {
				roomID = strings.TrimSpace(args[0])
			}
			if roomID == "" {
				prefs, err := cl.LoadPrefs()
				if err != nil || prefs.LastRoom == "" {
					return fmt.Errorf("no room on record; name a room or join one first")
				}
				roomID = prefs.LastRoom
			}

			client, err := cl.Dial(*serverURL)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			vantage := roomID
			if asGM {
				vantage = game.GMRoomID
			}
			join, err := client.JoinRoom(ctx, vantage)
			if err != nil {
				return err
			}
			if !join.Success {
				printError("Cannot enter " + vantage + ": " + join.Message)
				return nil
			}

			result, err := client.History(ctx, roomID)
			if err != nil {
				return err
			}
			renderHistory(result.Transactions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asGM, "as-gm", false, "view from the GM room instead of the room itself")
	return cmd
}

func newWatchCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream occupancy updates without joining a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cl.Dial(*serverURL)
			if err != nil {
				return err
			}
			defer client.Close()

			printInfo("Watching. Ctrl-C to stop.")
			return streamEvents(cmd.Context(), client)
		},
	}
}

func streamEvents(ctx context.Context, client *cl.Client) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-client.Events():
			if !ok {
				printWarn("Connection closed by server.")
				return nil
			}
			renderEvent(event)
		}
	}
}

func savePrefs(serverURL, roomID string) error {
	prefs, err := cl.LoadPrefs()
	if err != nil {
		prefs = cl.Prefs{}
	}
	prefs.ServerURL = serverURL
	prefs.LastRoom = roomID
	return cl.SavePrefs(prefs)
}
