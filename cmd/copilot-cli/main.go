// Package main provides a terminal chat client for the copilot
// service: it opens a session, subscribes to its event stream, and
// relays user messages.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// eventFrame is any frame pushed by the server.
type eventFrame struct {
	Type    string `json:"type"`
	Tool    string `json:"tool,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Text    string `json:"text,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Result  *struct {
		FinalText string `json:"final_text"`
		Outcome   string `json:"outcome"`
	} `json:"result,omitempty"`
}

// Client talks to one copilot session.
type Client struct {
	serverURL string
	sessionID string
	conn      *websocket.Conn
	http      *http.Client
	done      chan struct{}
}

// NewClient opens a session with the given instance credentials and
// subscribes to its event stream.
func NewClient(serverURL, n8nURL, apiKey string) (*Client, error) {
	c := &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		done:      make(chan struct{}),
	}

	body, _ := json.Marshal(map[string]string{"base_url": n8nURL, "api_key": apiKey})
	resp, err := c.http.Post(c.serverURL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	c.sessionID = created.SessionID

	wsURL, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/v1/sessions/" + c.sessionID + "/events"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}
	c.conn = conn
	return c, nil
}

// Close tears down the stream and the session.
func (c *Client) Close() {
	close(c.done)
	c.conn.Close()
	req, _ := http.NewRequest(http.MethodDelete, c.serverURL+"/v1/sessions/"+c.sessionID, nil)
	if resp, err := c.http.Do(req); err == nil {
		resp.Body.Close()
	}
}

// SendMessage relays one user message over the event socket.
func (c *Client) SendMessage(text string) error {
	return c.conn.WriteJSON(map[string]string{"type": "message", "text": text})
}

// ReadEvents prints server frames until the connection closes.
func (c *Client) ReadEvents() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var frame eventFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			printFrame(frame)
		}
	}
}

func printFrame(frame eventFrame) {
	switch frame.Type {
	case "state":
		fmt.Printf("  .. %s\n", frame.Text)
	case "tool_call":
		fmt.Printf("  -> calling %s\n", frame.Tool)
	case "tool_result":
		fmt.Printf("  <- %s: %s\n", frame.Tool, frame.Kind)
	case "final":
		fmt.Printf("\ncopilot [%s]:\n%s\n\n> ", frame.Outcome, frame.Text)
	case "turn_result":
		if frame.Result != nil && frame.Result.FinalText == "" {
			fmt.Print("> ")
		}
	case "error":
		fmt.Printf("\nerror [%s]: %s\n> ", frame.Code, frame.Message)
	case "turn_failed":
		fmt.Printf("\nturn failed: %s\n> ", frame.Text)
	}
}

// post runs a command endpoint and prints the JSON response.
func (c *Client) post(method, path string) {
	req, err := http.NewRequest(method, c.serverURL+path, nil)
	if err != nil {
		log.Printf("request error: %v", err)
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("request error: %v", err)
		return
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err == nil {
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("[%s]\n%s\n", resp.Status, formatted)
		return
	}
	fmt.Printf("[%s] %s\n", resp.Status, strings.TrimSpace(string(data)))
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "copilot server URL")
	n8nURL := flag.String("n8n-url", "", "n8n instance base URL")
	apiKey := flag.String("api-key", "", "n8n API key")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *n8nURL == "" || *apiKey == "" {
		log.Fatal("both -n8n-url and -api-key are required")
	}

	fmt.Printf("Connecting to %s...\n", *serverURL)
	client, err := NewClient(*serverURL, *n8nURL, *apiKey)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /workflow <id>, /execution <id>, /clear-execution, /context, /reset, /quit")
	fmt.Println()

	go client.ReadEvents()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	base := "/v1/sessions/" + client.sessionID

	fmt.Print("> ")
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
		case input == "/quit":
			fmt.Println("Bye!")
			return
		case strings.HasPrefix(input, "/workflow "):
			id := strings.TrimSpace(strings.TrimPrefix(input, "/workflow "))
			client.post(http.MethodPost, base+"/workflows/"+id+"/refresh")
		case strings.HasPrefix(input, "/execution "):
			id := strings.TrimSpace(strings.TrimPrefix(input, "/execution "))
			client.post(http.MethodPut, base+"/execution/"+id)
		case input == "/clear-execution":
			client.post(http.MethodDelete, base+"/execution")
		case input == "/context":
			client.post(http.MethodGet, base+"/context")
		case input == "/reset":
			client.post(http.MethodPost, base+"/reset")
		default:
			if err := client.SendMessage(input); err != nil {
				log.Printf("Send error: %v", err)
			}
			// The prompt returns with the final frame.
			continue
		}
		fmt.Print("> ")
	}
}
