// Package main is a small client that prints realtime notifications for one
// user. Useful for checking the websocket path end to end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func main() {
	host := flag.String("host", "localhost:5000", "API server host")
	token := flag.String("token", os.Getenv("SOCIALAPP_TOKEN"), "Bearer token for the user to watch")
	secure := flag.Bool("tls", false, "Use wss://")
	flag.Parse()

	if *token == "" {
		log.Fatal("❌ a token is required (-token or SOCIALAPP_TOKEN)")
	}

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: *host, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(*token)}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("❌ dial failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("❌ dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("✅ Connected to %s", u.Host)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("read error: %v", err)
				}
				return
			}
			var evt event
			if err := json.Unmarshal(message, &evt); err != nil || evt.Type == "" {
				fmt.Println(string(message))
				continue
			}
			fmt.Printf("[%s] %s %v\n", time.Now().Format(time.TimeOnly), evt.Type, evt.Payload)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("🛑 Interrupted, closing")
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
