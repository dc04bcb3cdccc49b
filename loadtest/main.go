package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	baseURL   = flag.String("base", "http://localhost:8080", "server base URL")
	pairCount = flag.Int("pairs", 50, "user pairs to create")
	msgCount  = flag.Int("messages", 20, "messages per user")
)

var received atomic.Int64

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

type scanResponse struct {
	Connection struct {
		ID string `json:"id"`
	} `json:"connection"`
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func main() {
	flag.Parse()
	log.Info().Int("users", *pairCount*2).Int("messages", *msgCount).Msg("starting stress test")

	run := uuid.NewString()[:8]
	start := time.Now()
	var wg sync.WaitGroup

	// Pair i is u_<run>_i_a and u_<run>_i_b.
	for i := 0; i < *pairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(run, pairID)
		}(i)
	}

	wg.Wait()
	log.Info().
		Int64("delivered", received.Load()).
		Int("sent", 2*(*pairCount)*(*msgCount)).
		Dur("elapsed", time.Since(start)).
		Msg("load test complete")
}

func runPair(run string, pairID int) {
	a, err := register(fmt.Sprintf("u_%s_%d_a", run, pairID))
	if err != nil {
		log.Error().Err(err).Int("pair", pairID).Msg("register failed")
		return
	}
	b, err := register(fmt.Sprintf("u_%s_%d_b", run, pairID))
	if err != nil {
		log.Error().Err(err).Int("pair", pairID).Msg("register failed")
		return
	}

	// A shows a QR code, B scans it.
	connID, err := pair(a.Token, b.Token)
	if err != nil {
		log.Error().Err(err).Int("pair", pairID).Msg("pairing failed")
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, a, b.User.ID, connID)
	go spamChat(&wsWg, b, a.User.ID, connID)
	wsWg.Wait()
}

func register(name string) (*authResponse, error) {
	var res authResponse
	err := call(http.MethodPost, "/api/users/register", "", map[string]string{
		"name":     name,
		"email":    name + "@loadtest.local",
		"password": "password123",
	}, http.StatusCreated, &res)
	return &res, err
}

func pair(tokenA, tokenB string) (string, error) {
	var gen struct {
		Token string `json:"token"`
	}
	if err := call(http.MethodGet, "/api/qr/generate", tokenA, nil, http.StatusOK, &gen); err != nil {
		return "", err
	}

	var scan scanResponse
	if err := call(http.MethodPost, "/api/qr/scan", tokenB, json.RawMessage(gen.Token), http.StatusOK, &scan); err != nil {
		return "", err
	}
	return scan.Connection.ID, nil
}

func spamChat(wg *sync.WaitGroup, me *authResponse, peerID, connID string) {
	defer wg.Done()

	wsURL := "ws" + strings.TrimPrefix(*baseURL, "http") + "/ws?token=" + me.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Error().Err(err).Str("user_id", me.User.ID).Msg("websocket connect failed")
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(envelope{Event: "join", Data: me.User.ID}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env struct {
				Event string `json:"event"`
			}
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == "newMessage" {
				received.Add(1)
			}
		}
	}()

	for i := 0; i < *msgCount; i++ {
		err := conn.WriteJSON(envelope{Event: "sendMessage", Data: map[string]any{
			"recipientId": peerID,
			"message": map[string]string{
				"connectionId": connID,
				"content":      fmt.Sprintf("LoadTest Msg %d from %s", i, me.User.ID),
			},
		}})
		if err != nil {
			log.Error().Err(err).Str("user_id", me.User.ID).Msg("send failed")
			break
		}
		// Small sleep to simulate a real network.
		time.Sleep(10 * time.Millisecond)
	}
	<-done
}

func call(method, path, token string, body any, want int, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, *baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
