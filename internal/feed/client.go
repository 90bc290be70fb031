package feed

import (
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ernie/tourney-tracker/internal/config"
)

// Client maintains the websocket connection to the game-server event
// feed and delivers raw frames on a channel. It joins the configured
// rooms after every (re)connect; the tracker sees a fresh stream each
// time, with no resume handshake.
type Client struct {
	cfg    config.FeedConfig
	Frames chan string
	Errors chan error
	done   chan struct{}
}

// NewClient creates a feed client for the configured endpoint
func NewClient(cfg config.FeedConfig) *Client {
	return &Client{
		cfg:    cfg,
		Frames: make(chan string, 100),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// Start begins the connect/read loop in a goroutine
func (c *Client) Start() error {
	if c.cfg.URL == "" {
		return fmt.Errorf("feed URL not configured")
	}
	go c.dialLoop()
	return nil
}

// Stop terminates the connect/read loop
func (c *Client) Stop() {
	close(c.done)
}

// dialLoop connects, reads until the connection drops, then redials
// after a fixed delay
func (c *Client) dialLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connectAndRead(); err != nil {
			select {
			case c.Errors <- err:
			default:
			}
		}

		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.RedialDelay):
		}
	}
}

// connectAndRead dials the feed, joins rooms, and pushes frames until
// the connection fails
func (c *Client) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}
	defer conn.Close()

	log.Printf("Feed connected to %s", c.cfg.URL)

	for _, room := range c.cfg.Rooms {
		join := fmt.Sprintf("|/join %s", room)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(join)); err != nil {
			return fmt.Errorf("joining room %s: %w", room, err)
		}
	}

	for {
		select {
		case <-c.done:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}

		select {
		case c.Frames <- string(message):
		default:
			log.Printf("Feed frame channel full, dropping frame")
		}
	}
}
