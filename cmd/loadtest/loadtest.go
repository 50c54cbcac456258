// Command loadtest opens many chat pages against a running server and
// types drafts into them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

type draft struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func main() {
	endpoint := flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	clients := flag.Int("clients", 50, "concurrent pages")
	keystrokes := flag.Int("keys", 20, "drafts typed per page")
	delay := flag.Duration("delay", 50*time.Millisecond, "pause between keystrokes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		wg       sync.WaitGroup
		failed   atomic.Int64
		received atomic.Int64
	)

	start := time.Now()
	for i := range *clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := runPage(ctx, *endpoint, i, *keystrokes, *delay)
			received.Add(int64(n))
			if err != nil {
				failed.Add(1)
				log.Printf("page %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	log.Printf("%d pages, %d failed, %d frames received in %s",
		*clients, failed.Load(), received.Load(), time.Since(start).Round(time.Millisecond))
}

// runPage types keystrokes drafts and counts the frames the server sends
// back until it is done typing.
func runPage(ctx context.Context, endpoint string, id, keystrokes int, delay time.Duration) (int, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	readCtx, stopRead := context.WithCancel(ctx)
	defer stopRead()

	var frames atomic.Int64
	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				return
			}
			frames.Add(1)
		}
	}()

	text := strings.Repeat(fmt.Sprintf("page %d ", id), keystrokes)
	for k := 1; k <= keystrokes; k++ {
		payload, err := json.Marshal(draft{Type: "draft", Content: text[:k]})
		if err != nil {
			return int(frames.Load()), err
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return int(frames.Load()), fmt.Errorf("write: %w", err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return int(frames.Load()), ctx.Err()
		}
	}

	conn.Close(websocket.StatusNormalClosure, "done")
	return int(frames.Load()), nil
}
