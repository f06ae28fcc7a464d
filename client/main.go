// Interactive test client for the Cursed Cards server. Speaks the binary
// packet protocol over a WebSocket and maps simple line commands onto
// game actions.
//
// Commands:
//
//	create <name> [avatar]
//	join <code> <name> [avatar]
//	reconnect <code> <oldPlayerId>
//	start
//	leave
//	play <cardId> [targetPlayerId]
//	target <playerId> [giftCardId]
//	draw
//	block <cardId> | pass
//	counter <cardId> | accept
//	seen
//	pair <cardId1> <cardId2> <targetPlayerId> [requestedType]
//	reinsert <position>
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	msgTypeHeartbeat = 1

	msgTypeCreateRoom = 101
	msgTypeJoinRoom   = 102
	msgTypeLeaveRoom  = 103
	msgTypeStartGame  = 104
	msgTypeReconnect  = 105

	msgTypePlayCard        = 201
	msgTypeSelectTarget    = 202
	msgTypeDrawCard        = 203
	msgTypeHexResponse     = 204
	msgTypeCounterResponse = 205
	msgTypeDarkVisionDone  = 206
	msgTypePairSteal       = 207
	msgTypeReinsertDemon   = 208
)

// send frames and sends one packet: 2-byte message ID, 2-byte length, payload.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
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
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	// Keep the session marked active.
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				send(c, msgTypeHeartbeat, nil)
			}
		}
	}()

	go func() {
		<-interrupt
		log.Println("Interrupt received, closing connection.")
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(time.Second)
		os.Exit(0)
	}()

	log.Println("Connected. Type 'create <name>' or 'join <code> <name>' to begin.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "create":
			if len(fields) < 2 {
				log.Println("usage: create <name> [avatar]")
				continue
			}
			avatar := 0
			if len(fields) > 2 {
				avatar = atoiOr(fields[2], 0)
			}
			err = send(c, msgTypeCreateRoom, map[string]interface{}{
				"playerName": fields[1], "avatar": avatar,
			})

		case "join":
			if len(fields) < 3 {
				log.Println("usage: join <code> <name> [avatar]")
				continue
			}
			avatar := 0
			if len(fields) > 3 {
				avatar = atoiOr(fields[3], 0)
			}
			err = send(c, msgTypeJoinRoom, map[string]interface{}{
				"roomCode": fields[1], "playerName": fields[2], "avatar": avatar,
			})

		case "reconnect":
			if len(fields) < 3 {
				log.Println("usage: reconnect <code> <oldPlayerId>")
				continue
			}
			err = send(c, msgTypeReconnect, map[string]string{
				"roomCode": fields[1], "oldPlayerId": fields[2],
			})

		case "start":
			err = send(c, msgTypeStartGame, nil)

		case "leave":
			err = send(c, msgTypeLeaveRoom, nil)

		case "play":
			if len(fields) < 2 {
				log.Println("usage: play <cardId> [targetPlayerId]")
				continue
			}
			target := ""
			if len(fields) > 2 {
				target = fields[2]
			}
			err = send(c, msgTypePlayCard, map[string]string{
				"cardId": fields[1], "targetPlayerId": target,
			})

		case "target":
			if len(fields) < 2 {
				log.Println("usage: target <playerId> [giftCardId]")
				continue
			}
			giftCard := ""
			if len(fields) > 2 {
				giftCard = fields[2]
			}
			err = send(c, msgTypeSelectTarget, map[string]string{
				"targetPlayerId": fields[1], "giftCardId": giftCard,
			})

		case "draw":
			err = send(c, msgTypeDrawCard, nil)

		case "block":
			if len(fields) < 2 {
				log.Println("usage: block <cardId>")
				continue
			}
			err = send(c, msgTypeHexResponse, map[string]interface{}{
				"useHexBlock": true, "cardId": fields[1],
			})

		case "pass":
			err = send(c, msgTypeHexResponse, map[string]interface{}{
				"useHexBlock": false,
			})

		case "counter":
			if len(fields) < 2 {
				log.Println("usage: counter <cardId>")
				continue
			}
			err = send(c, msgTypeCounterResponse, map[string]interface{}{
				"useCounterSpell": true, "cardId": fields[1],
			})

		case "accept":
			err = send(c, msgTypeCounterResponse, map[string]interface{}{
				"useCounterSpell": false,
			})

		case "seen":
			err = send(c, msgTypeDarkVisionDone, nil)

		case "pair":
			if len(fields) < 4 {
				log.Println("usage: pair <cardId1> <cardId2> <targetPlayerId> [requestedType]")
				continue
			}
			requested := ""
			if len(fields) > 4 {
				requested = fields[4]
			}
			err = send(c, msgTypePairSteal, map[string]string{
				"cardId1": fields[1], "cardId2": fields[2],
				"targetPlayerId": fields[3], "requestedCardType": requested,
			})

		case "reinsert":
			if len(fields) < 2 {
				log.Println("usage: reinsert <position>")
				continue
			}
			err = send(c, msgTypeReinsertDemon, map[string]int{
				"position": atoiOr(fields[1], 0),
			})

		case "quit", "exit":
			return

		default:
			log.Printf("Unknown command: %s", fields[0])
			continue
		}

		if err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
