// Worker consumes audit events from Kafka and writes them to the process
// log, one line per event. Set KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, and
// KAFKA_GROUP_ID; the other required config (APP_ID, HMAC_SECRET,
// ENCRYPTION_KEY) must be present but is unused here.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sasarjan/authsync/internal/audit"
	"github.com/sasarjan/authsync/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.AuditKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	topic := cfg.AuditKafkaTopic
	if topic == "" {
		topic = "sasarjan-auth-audit"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "sasarjan-auth-audit-worker"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming audit events from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var event audit.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("worker: malformed audit event at offset %d: %v", msg.Offset, err)
			continue
		}
		log.Printf("audit: %s app=%s user=%s ip=%s at=%s %s",
			event.Action, event.AppID, event.UserID, event.IP,
			event.CreatedAt.Format(time.RFC3339), event.Metadata)
	}
}
