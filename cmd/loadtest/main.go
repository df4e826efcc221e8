// Command loadtest drives concurrent paho.mqtt.golang clients against
// a broker, each publishing to and subscribing from its own topic —
// the same fan-out-of-goroutines shape as the teacher's
// cmd/benchmark/main.go, rebuilt on the standard eclipse/paho client
// instead of the teacher's own mqtt.Client.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"
)

func main() {
	broker := flag.String("broker", "tcp://127.0.0.1:1883", "broker URL")
	clients := flag.Int("clients", 100, "number of concurrent publishing clients")
	interval := flag.Duration("interval", time.Second, "publish interval per client")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	flag.Parse()

	var group errgroup.Group
	for i := 0; i < *clients; i++ {
		i := i
		group.Go(func() error {
			return runClient(*broker, i, *interval, *duration)
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatalf("loadtest: %v", err)
	}
}

func runClient(broker string, i int, interval, duration time.Duration) error {
	clientID := fmt.Sprintf("loadtest-%d", i)
	topic := fmt.Sprintf("loadtest/%d", i)

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("client %s: connect: %w", clientID, token.Error())
	}
	defer client.Disconnect(250)

	received := 0
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		received++
	}
	if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("client %s: subscribe: %w", clientID, token.Error())
	}

	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sent := 0
	for time.Now().Before(deadline) {
		<-ticker.C
		payload := fmt.Sprintf("hello from %s at %s", clientID, time.Now().Format(time.RFC3339))
		if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("client %s: publish: %v", clientID, token.Error())
			continue
		}
		sent++
	}
	log.Printf("client %s: sent=%d received=%d", clientID, sent, received)
	return nil
}
