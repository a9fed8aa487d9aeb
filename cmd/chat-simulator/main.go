package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/duckhunt/internal/domain"
	"github.com/google/uuid"
)

var nicknames = []string{
	"mallard", "teal", "wigeon", "pintail", "gadwall", "shoveler", "eider", "scoter",
	"merganser", "canvasback", "redhead", "bufflehead", "goldeneye", "smew", "garganey", "pochard",
}

var chatter = []string{
	"anyone around?", "lol", "did you see that", "brb", "good morning", "that build is broken again",
	"who broke main", "coffee time", "same", "nice", "ship it", "works on my machine",
}

func userID(idx int) string {
	return fmt.Sprintf("user-%03d", idx)
}

func userName(idx int) string {
	return fmt.Sprintf("%s%d", nicknames[idx%len(nicknames)], idx/len(nicknames)+1)
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "duckhunt-chat-events", "Kafka topic for inbound chat events")
	network := flag.String("network", "sim-guild", "Network to simulate")
	channels := flag.String("channels", "general,random", "Channels to simulate (comma-separated)")
	users := flag.Int("users", 12, "Number of chatting users")
	rate := flag.Int("rate", 5, "Messages per second")
	commandRate := flag.Float64("command-rate", 0.1, "Fraction of events that are bang/befriend commands")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")
	channelList := strings.Split(*channels, ",")
	if *users < 1 || *rate < 1 {
		log.Fatal("users and rate must be positive")
	}

	fmt.Printf("Simulating %d users in %s/%s at %d events/sec -> %s\n",
		*users, *network, strings.Join(channelList, ","), *rate, *topic)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	send := func(event domain.ChatEvent) {
		event.ID = uuid.NewString()
		event.Timestamp = time.Now().UTC()
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}
		// keyed by channel so every event of a channel lands on one partition
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.Key().String()),
			Value: sarama.ByteEncoder(data),
		}
	}

	event := func(channel string, user int, eventType domain.ChatEventType, text string) domain.ChatEvent {
		return domain.ChatEvent{
			Type:     eventType,
			Network:  *network,
			Channel:  channel,
			UserID:   userID(user),
			UserName: userName(user),
			Admin:    user == 0,
			Text:     text,
		}
	}

	// user 0 is the channel admin and opens the hunt everywhere
	for _, channel := range channelList {
		send(event(channel, 0, domain.ChatEventCommand, "!starthunt"))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	var sent int64
	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Events: %d, Acked: %d, Errors: %d\n",
			sent, atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return
		case <-deadline:
			shutdown("Duration reached, shutting down...")
			return
		case <-ticker.C:
			channel := channelList[rand.IntN(len(channelList))]
			user := rand.IntN(*users)
			switch r := rand.Float64(); {
			case r < *commandRate/2:
				send(event(channel, user, domain.ChatEventCommand, "!bang"))
			case r < *commandRate:
				send(event(channel, user, domain.ChatEventCommand, "!bef"))
			default:
				send(event(channel, user, domain.ChatEventMessage, chatter[rand.IntN(len(chatter))]))
			}
			sent++
		case <-statsTicker.C:
			fmt.Printf("[%s] Events: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				sent,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
