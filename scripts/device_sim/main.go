// Command device_sim emulates the fingerprint sensor on a serial port
// so the service can be exercised without hardware. Pair it with a
// virtual port, e.g.:
//
//	socat -d -d pty,raw,echo=0,link=/tmp/sensor pty,raw,echo=0,link=/tmp/host
//	go run ./scripts/device_sim -port /tmp/sensor
//
// and point the service at /tmp/host.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"go.bug.st/serial"
)

type inboundCommand struct {
	Command string `json:"command"`
	ID      int64  `json:"id"`
	Enabled *bool  `json:"enabled"`
	Nome    string `json:"nome"`
	Type    string `json:"type"`
}

func main() {
	var (
		portPath    string
		baud        int
		enrollDelay time.Duration
		failEnroll  bool
		activityGap time.Duration
		maxUserID   int64
	)

	flag.StringVar(&portPath, "port", "/tmp/sensor", "serial port to listen on")
	flag.IntVar(&baud, "baud", 115200, "baud rate")
	flag.DurationVar(&enrollDelay, "enroll-delay", 2*time.Second, "delay before answering ENROLL")
	flag.BoolVar(&failEnroll, "fail-enroll", false, "answer every ENROLL with an error")
	flag.DurationVar(&activityGap, "activity-interval", 0, "emit a random clock event this often (0 disables)")
	flag.Int64Var(&maxUserID, "max-user-id", 10, "highest user id used for random clock events")
	flag.Parse()

	port, err := serial.Open(portPath, &serial.Mode{BaudRate: baud})
	if err != nil {
		log.Fatalf("failed to open %s: %v", portPath, err)
	}
	defer port.Close()
	log.Printf("sensor simulator on %s @ %d", portPath, baud)

	send := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("marshal: %v", err)
			return
		}
		if _, err := port.Write(append(data, '\n')); err != nil {
			log.Printf("write: %v", err)
			return
		}
		log.Printf("-> %s", data)
	}

	if activityGap > 0 {
		go func() {
			for range time.Tick(activityGap) {
				send(map[string]interface{}{
					"status":    "activity",
					"id":        rand.Int63n(maxUserID) + 1,
					"timestamp": time.Now().Format("2006-01-02T15:04:05"),
				})
			}
		}()
	}

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.Printf("<- %s", line)

		var cmd inboundCommand
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			log.Printf("ignoring non-JSON line")
			continue
		}

		switch cmd.Command {
		case "ENROLL":
			time.Sleep(enrollDelay)
			if failEnroll {
				send(map[string]interface{}{"status": "error", "id": cmd.ID, "message": "falha na leitura da digital"})
				continue
			}
			send(map[string]interface{}{"status": "info", "id": cmd.ID, "message": "posicione o dedo novamente"})
			send(map[string]interface{}{"status": "success", "id": cmd.ID, "message": "digital armazenada"})
		case "ENROLL_CONFIRMED":
			log.Printf("enrollment confirmed for id %d", cmd.ID)
		case "DELETE_ID":
			send(map[string]interface{}{"status": "success", "id": cmd.ID, "message": "template removido"})
		case "EMPTY_DATABASE":
			send(map[string]interface{}{"status": "success", "message": "banco de digitais limpo"})
		case "SET_TIME":
			log.Printf("clock set")
		case "SET_BUZZER":
			log.Printf("buzzer enabled=%v", cmd.Enabled != nil && *cmd.Enabled)
		case "USER_DATA_RESPONSE":
			fmt.Printf("display: %s (%s)\n", cmd.Nome, cmd.Type)
		case "USER_NOT_FOUND":
			fmt.Println("display: usuário não encontrado")
		default:
			log.Printf("unknown command %q", cmd.Command)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read: %v", err)
	}
}
