// cmd/historian/main.go is an asynchronous historian service that pops game
// action records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/unolabs/uno-service/internal/cache"
	"github.com/unolabs/uno-service/internal/database"
)

// HistorianService encapsulates the Redis + DB logic for capturing game
// actions in batches.
type HistorianService struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []cache.GameActionRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.GameActionRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database and starts the queue-draining loop, blocking
// until Stop is called.
func (hs *HistorianService) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()

	log.Println("uno-historian service started.")
	<-hs.ctx.Done()
	hs.flushBatch()
	log.Println("uno-historian shutting down.")
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

// readRedisLoop continuously BLPops records from the queue, accumulating them
// into a batch that flushes on size or on a timer.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("UNO_HISTORIAN_QUEUE", cache.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatch()

		default:
			// BLPop with a short timeout so shutdown is handled promptly.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
					log.Printf("[ERROR] BLPop: %v\n", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.GameActionRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid action record: %v\n", err)
				continue
			}
			hs.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record and flushes when the threshold is reached.
func (hs *HistorianService) appendToBatch(record cache.GameActionRecord) {
	hs.batchMu.Lock()
	hs.batch = append(hs.batch, record)
	full := len(hs.batch) >= hs.batchSize
	hs.batchMu.Unlock()

	if full {
		hs.flushBatch()
	}
}

// flushBatch writes the accumulated records to the database in one
// transaction.
func (hs *HistorianService) flushBatch() {
	hs.batchMu.Lock()
	if len(hs.batch) == 0 {
		hs.batchMu.Unlock()
		return
	}
	batchCopy := make([]cache.GameActionRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]
	hs.batchMu.Unlock()

	if err := database.InsertGameActions(context.Background(), batchCopy); err != nil {
		log.Printf("[ERROR] flushBatch: %v\n", err)
	} else {
		log.Printf("Flushed %d actions to DB.\n", len(batchCopy))
	}
}

func main() {
	hs := NewHistorianService()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		hs.Stop()
	}()

	hs.Run()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
