package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	cl "forest/internal/cli"
	"forest/internal/coord"
	"forest/internal/game"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderRooms(rooms map[string]game.RoomView) {
	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return roomRank(ids[i]) < roomRank(ids[j])
	})

	accent.Println("ROOM        POINTS   OCCUPIED")
	for _, id := range ids {
		view := rooms[id]
		occupied := "no"
		if view.Occupied {
			occupied = "yes"
		}
		fmt.Printf("%-11s %-8s %s\n", view.Name, formatBalance(view.Points), occupied)
	}
}

// roomRank orders room1..room11 numerically with the GM room last.
func roomRank(id string) int {
	if id == game.GMRoomID {
		return 1 << 20
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "room"))
	if err != nil {
		return 1 << 19
	}
	return n
}

func formatBalance(b game.Balance) string {
	if b.Hidden {
		return "?"
	}
	return strconv.Itoa(b.Value)
}

func renderHistory(transactions []game.Transaction) {
	if len(transactions) == 0 {
		printInfo("No transactions yet.")
		return
	}
	accent.Println("WHEN                  TYPE      FROM       TO          AMOUNT")
	for _, tx := range transactions {
		fmt.Printf("%-21s %-9s %-10s %-11s %d\n",
			tx.Timestamp.Local().Format("2006-01-02 15:04:05"),
			tx.Kind, tx.From, tx.To, tx.Amount)
	}
}

func renderEvent(event cl.Event) {
	switch event.Type {
	case coord.TypeRoomUpdate:
		var payload coord.RoomUpdate
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
		state := "is now empty"
		if payload.Room.Occupied {
			state = "is now occupied"
		}
		printInfo(fmt.Sprintf("%s %s", payload.Room.Name, state))
	case coord.TypeAllRoomsUpdate:
		var payload coord.AllRoomsUpdate
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
		renderRooms(payload.Rooms)
	case coord.TypeNewTransaction:
		var payload coord.NewTransaction
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
		tx := payload.Transaction
		printSuccess(fmt.Sprintf("Transaction: %d points %s -> %s", tx.Amount, tx.From, tx.To))
	case coord.TypeTransactionHistory:
		var payload coord.TransactionHistory
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
		renderHistory(payload.Transactions)
	}
}
