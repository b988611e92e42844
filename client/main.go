package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/quantumquest/network"
	"github.com/wfunc/quantumquest/room"
	"github.com/wfunc/quantumquest/state"
)

const usage = `commands:
  auth <token>      bind this connection to an account
  start [hints]     open a tower room
  begin             leave the tutorial
  t <pad>           apply the Hadamard gate to a pad
  s <pad>           step onto a pad
  reset | hints | restart | leave`

// writeMutex serialises writers; the heartbeat runs beside the prompt.
var writeMutex sync.Mutex

func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	writeMutex.Lock()
	defer writeMutex.Unlock()
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func printState(data []byte) {
	var msg room.TowerStateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("bad tower state: %v", err)
		return
	}
	snap := msg.Snapshot
	var pads []string
	for _, p := range snap.Board.Pads {
		mark := ""
		if p.Locked {
			mark = "*"
		}
		if p.Glowing {
			mark += "!"
		}
		pads = append(pads, fmt.Sprintf("%d:%s%s", p.ID, p.State.Label(), mark))
	}
	line := fmt.Sprintf("floor %d/%d attempts %d %s [%s] path %v",
		snap.Floor+1, snap.FloorCount, snap.Attempts, snap.Status, strings.Join(pads, " "), snap.Board.SelectedPath)
	if msg.Last != nil {
		line += fmt.Sprintf(" -> %s %s", msg.Last.Outcome, msg.Last.Message)
	}
	if snap.Board.Unstable {
		line += fmt.Sprintf(" (decoherence in %d)", snap.Board.DecoherenceLeft)
	}
	log.Println(line)
}

func command(c *websocket.Conn, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	padArg := func() (*int, error) {
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s needs a pad number", fields[0])
		}
		id, err := strconv.Atoi(fields[1])
		return &id, err
	}

	switch fields[0] {
	case "auth":
		if len(fields) < 2 {
			return fmt.Errorf("auth needs a token")
		}
		return send(c, network.MsgTypeAuth, map[string]string{"token": fields[1]})
	case "start":
		return send(c, network.MsgTypeStartTower, map[string]bool{"hints": len(fields) > 1 && fields[1] == "hints"})
	case "leave":
		return send(c, network.MsgTypeLeaveRoom, nil)
	case "t", "s":
		pad, err := padArg()
		if err != nil {
			return err
		}
		kind := state.ActionTransform
		if fields[0] == "s" {
			kind = state.ActionStep
		}
		return send(c, network.MsgTypePlayerAction, state.Action{Type: kind, Pad: pad})
	case state.ActionBegin, state.ActionReset, state.ActionHints, state.ActionRestart:
		return send(c, network.MsgTypePlayerAction, state.Action{Type: fields[0]})
	}
	fmt.Println(usage)
	return nil
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			p, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet: %v", err)
				continue
			}
			switch p.MsgID {
			case network.MsgTypeTowerState:
				printState(p.Data)
			case network.MsgTypeHeartbeat:
			default:
				log.Printf("<- RECV (ID: %d): %s", p.MsgID, string(p.Data))
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
					return
				}
			}
		}
	}()

	fmt.Println(usage)
	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			writeMutex.Lock()
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMutex.Unlock()
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			if err := command(c, strings.TrimSpace(text)); err != nil {
				log.Println("Error:", err)
			}
		}
	}
}
