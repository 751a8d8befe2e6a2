package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"trip-chat/internal/auth"
	"trip-chat/pkg/chat"

	"github.com/gorilla/websocket"
)

// Line-oriented client for poking at the messaging server by hand.
//
//	/join <conversationID>      join a conversation room
//	/msg <conversationID> text  send a direct message
//	/read <messageID>           mark a message as read
//	/typing <conversationID>    send a typing signal
//	/support <ticketID>         join a ticket room
//	/reply <ticketID> text      send a support message
func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	user := flag.String("user", "", "user id")
	role := flag.String("role", "user", "role (user or admin)")
	flag.Parse()

	if *user == "" {
		log.Fatal("-user is required")
	}

	token, err := auth.GenerateToken(*user, *role)
	if err != nil {
		log.Fatalf("could not sign token (is APP_SECRET set?): %v", err)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				os.Exit(0)
			}
			fmt.Printf("<< %s\n", data)
		}
	}()

	send := func(event string, data any) {
		payload, _ := json.Marshal(data)
		frame, _ := json.Marshal(chat.Envelope{Event: event, Data: payload})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Fatalf("write: %v", err)
		}
	}

	send(chat.EventUserOnline, chat.UserOnlinePayload{UserID: *user, Role: *role})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "/join":
			if len(fields) < 2 {
				continue
			}
			send(chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: fields[1]})
		case "/msg":
			if len(fields) < 3 {
				continue
			}
			send(chat.EventSendMessage, chat.SendMessagePayload{
				ConversationID: fields[1],
				SenderID:       *user,
				Message:        fields[2],
			})
		case "/read":
			if len(fields) < 2 {
				continue
			}
			send(chat.EventMarkAsRead, chat.MarkAsReadPayload{MessageID: fields[1]})
		case "/typing":
			if len(fields) < 2 {
				continue
			}
			send(chat.EventTyping, chat.TypingPayload{ConversationID: fields[1], UserID: *user})
		case "/support":
			if len(fields) < 2 {
				continue
			}
			send(chat.EventJoinSupport, chat.JoinSupportPayload{TicketID: fields[1]})
		case "/reply":
			if len(fields) < 3 {
				continue
			}
			send(chat.EventSendSupportMessage, chat.SendSupportMessagePayload{
				TicketID: fields[1],
				SenderID: *user,
				Message:  fields[2],
				IsAdmin:  *role == "admin",
			})
		default:
			fmt.Println("unknown command")
		}
	}
}
