package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// ScoreSubmission matches the ingestion message format: upserts keyed by
// player name.
type ScoreSubmission struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "player-scores", "Kafka topic")
	totalPlayers := flag.Int("players", 1000, "Total number of players to generate")
	updatesPerSecond := flag.Int("rate", 100, "Updates per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	maxScore := flag.Int64("max-score", 100000, "Upper bound for generated scores")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Score producer")
	fmt.Printf("  Brokers:       %s\n", *brokers)
	fmt.Printf("  Topic:         %s\n", *topic)
	fmt.Printf("  Total players: %d\n", *totalPlayers)
	fmt.Printf("  Updates/sec:   %d\n", *updatesPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	// Handle producer errors and successes
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

	send := func(sub ScoreSubmission) {
		data, err := json.Marshal(sub)
		if err != nil {
			log.Printf("Failed to marshal submission: %v", err)
			return
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(sub.Name),
			Value: sarama.ByteEncoder(data),
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	ticker := time.NewTicker(time.Second / time.Duration(*updatesPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	sent := 0
loop:
	for {
		select {
		case <-quit:
			break loop
		case <-deadline:
			break loop
		case <-statsTicker.C:
			fmt.Printf("sent=%d ok=%d errors=%d\n",
				sent,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		case <-ticker.C:
			send(ScoreSubmission{
				Name:  playerName(rand.Intn(*totalPlayers)),
				Score: rand.Int63n(*maxScore),
			})
			sent++
		}
	}

	fmt.Println("shutting down...")
	producer.AsyncClose()
	wg.Wait()

	fmt.Printf("done: sent=%d ok=%d errors=%d\n",
		sent,
		atomic.LoadInt64(&successCount),
		atomic.LoadInt64(&errorCount),
	)
}
