// dlq-reprocess разбирает storefront.dlq и возвращает застрявшие
// сообщения в рабочие topics. В DLQ попадают два вида записей:
// события outbox, исчерпавшие ретраи публикации, и уведомления
// платёжных шлюзов, которые не удалось обработать. По умолчанию
// утилита работает в dry-run и только печатает кандидатов на replay.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/messaging/kafka"
)

const (
	defaultScanLimit   = 100
	defaultIdleTimeout = 2 * time.Second

	aggregateOrder        = "order"
	aggregatePayment      = "payment"
	aggregateNotification = "notification"
)

type options struct {
	brokers     []string
	dlqTopic    string
	aggregate   string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// replayRecord — восстановленное из DLQ сообщение, готовое к публикации.
type replayRecord struct {
	topic     string
	key       string
	value     []byte
	aggregate string
	eventType string
}

// notificationRecord — запись consumer'а уведомлений шлюзов
// (см. dlqRecord в internal/messaging/kafka).
type notificationRecord struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	ErrorMessage  string `json:"error_message"`
}

// outboxRecord — domain.OutboxMessage, опубликованный DLQPublisher'ом.
// У структуры нет JSON-тегов, поэтому поля сериализуются как есть,
// а Payload ([]byte) — как base64.
type outboxRecord struct {
	ID            string `json:"ID"`
	AggregateType string `json:"AggregateType"`
	AggregateID   string `json:"AggregateID"`
	EventType     string `json:"EventType"`
	Payload       []byte `json:"Payload"`
}

// replayEnvelope повторяет формат OutboxTopicPublisher, чтобы слушатели
// не отличали replay от обычной публикации.
type replayEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type replaySummary struct {
	scanned  int
	replayed int
	filtered int
	skipped  int
}

func (s *replaySummary) add(other replaySummary) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.filtered += other.filtered
	s.skipped += other.skipped
}

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionOpener interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error)
	Close() error
}

type eventPublisher interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaOpener struct {
	consumer sarama.Consumer
}

func (o saramaOpener) ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error) {
	pc, err := o.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (o saramaOpener) Close() error {
	if o.consumer == nil {
		return nil
	}
	return o.consumer.Close()
}

// newReplayKit подменяется в тестах.
var newReplayKit = func(opts options) (offsetReader, partitionOpener, eventPublisher, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(opts.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	opener := saramaOpener{consumer: rawConsumer}

	if !opts.execute {
		return client, opener, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(opts.brokers, producerConfig)
	if err != nil {
		_ = opener.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, opener, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	opts, err := parseOptions()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), opts); err != nil {
		fail("dlq reprocess failed: %v", err)
	}
}

func parseOptions() (options, error) {
	var (
		brokersRaw string
		opts       options
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: SKOOLI_KAFKA_BROKERS)")
	flag.StringVar(&opts.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "dead letter queue topic to scan")
	flag.StringVar(&opts.aggregate, "aggregate", "", "replay only records of this kind: order, payment or notification")
	flag.StringVar(&opts.eventType, "event-type", "", "replay only outbox records with this event type, e.g. payment.succeeded")
	flag.IntVar(&opts.limit, "limit", defaultScanLimit, "max number of DLQ records to scan")
	flag.BoolVar(&opts.execute, "execute", false, "publish replays; default is dry-run")
	flag.BoolVar(&opts.fromNewest, "from-newest", false, "scan latest records first (bounded by limit)")
	flag.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SKOOLI_KAFKA_BROKERS")
	}

	opts.brokers = splitBrokers(brokersRaw)
	if len(opts.brokers) == 0 {
		return options{}, fmt.Errorf("kafka brokers are required (-brokers or SKOOLI_KAFKA_BROKERS)")
	}
	if strings.TrimSpace(opts.dlqTopic) == "" {
		return options{}, fmt.Errorf("dlq-topic is required")
	}
	switch opts.aggregate {
	case "", aggregateOrder, aggregatePayment, aggregateNotification:
	default:
		return options{}, fmt.Errorf("unknown aggregate %q: want order, payment or notification", opts.aggregate)
	}
	if opts.limit <= 0 {
		return options{}, fmt.Errorf("limit must be > 0")
	}
	if opts.idleTimeout <= 0 {
		return options{}, fmt.Errorf("idle-timeout must be > 0")
	}

	return opts, nil
}

func splitBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, opts options) error {
	log.WithFields(log.Fields{
		"dlq_topic":  opts.dlqTopic,
		"aggregate":  opts.aggregate,
		"event_type": opts.eventType,
		"limit":      opts.limit,
		"execute":    opts.execute,
	}).Info("starting dlq reprocess")

	reader, opener, publisher, err := newReplayKit(opts)
	if err != nil {
		return err
	}
	defer func() {
		if publisher != nil {
			_ = publisher.Close()
		}
		if opener != nil {
			_ = opener.Close()
		}
		if reader != nil {
			_ = reader.Close()
		}
	}()

	return replayAll(ctx, opts, reader, opener, publisher)
}

func replayAll(ctx context.Context, opts options, reader offsetReader, opener partitionOpener, publisher eventPublisher) error {
	if reader == nil || opener == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if opts.execute && publisher == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := reader.Partitions(opts.dlqTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", opts.dlqTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", opts.dlqTopic).Warn("dlq topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replaySummary
	for _, partition := range partitions {
		if total.scanned >= opts.limit {
			break
		}

		stats, err := drainPartition(ctx, opts, reader, opener, publisher, partition, opts.limit-total.scanned)
		if err != nil {
			return err
		}
		total.add(stats)
	}

	mode := "dry-run"
	if opts.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"filtered": total.filtered,
		"skipped":  total.skipped,
	}).Info("dlq reprocess finished")

	return nil
}

func drainPartition(
	ctx context.Context,
	opts options,
	reader offsetReader,
	opener partitionOpener,
	publisher eventPublisher,
	partition int32,
	limit int,
) (replaySummary, error) {
	var stats replaySummary
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := reader.GetOffset(opts.dlqTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := reader.GetOffset(opts.dlqTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if opts.fromNewest {
		startOffset = newest - int64(limit)
		if startOffset < oldest {
			startOffset = oldest
		}
	}

	partitionReader, err := opener.ConsumePartition(opts.dlqTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = partitionReader.Close() }()

	endOffset := newest
	idleTimer := time.NewTimer(opts.idleTimeout)
	defer idleTimer.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-partitionReader.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-partitionReader.Messages():
			if !ok || msg == nil {
				return stats, nil
			}

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(opts.idleTimeout)

			if msg.Offset >= endOffset {
				return stats, nil
			}
			stats.scanned++

			record, err := decodeRecord(msg)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip undecodable dlq record")
			} else if !matchesFilters(record, opts) {
				stats.filtered++
			} else if opts.execute {
				if err := publishRecord(publisher, record); err != nil {
					return stats, fmt.Errorf("publish replay: %w", err)
				}
				stats.replayed++
			} else {
				log.WithFields(log.Fields{
					"partition":    msg.Partition,
					"offset":       msg.Offset,
					"target_topic": record.topic,
					"aggregate":    record.aggregate,
					"event_type":   record.eventType,
					"key":          record.key,
				}).Info("dlq replay candidate")
				stats.replayed++
			}

			if msg.Offset+1 >= endOffset {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

// decodeRecord распознаёт форму DLQ-записи. Сначала пробуем запись
// consumer'а уведомлений (по original_value), затем outbox-сообщение.
func decodeRecord(msg *sarama.ConsumerMessage) (replayRecord, error) {
	var notification notificationRecord
	if err := json.Unmarshal(msg.Value, &notification); err == nil && notification.OriginalValue != "" {
		topic := strings.TrimSpace(notification.OriginalTopic)
		if topic == "" {
			topic = kafka.TopicPaymentNotifications
		}
		return replayRecord{
			topic:     topic,
			key:       notification.OriginalKey,
			value:     []byte(notification.OriginalValue),
			aggregate: aggregateNotification,
		}, nil
	}

	var outbox outboxRecord
	if err := json.Unmarshal(msg.Value, &outbox); err != nil {
		return replayRecord{}, fmt.Errorf("unknown dlq record shape: %w", err)
	}
	if outbox.EventType == "" {
		return replayRecord{}, fmt.Errorf("dlq record has no event type")
	}
	if len(outbox.Payload) == 0 {
		return replayRecord{}, fmt.Errorf("dlq record %s has no payload", outbox.ID)
	}

	var topic string
	switch outbox.AggregateType {
	case aggregateOrder:
		topic = kafka.TopicOrderEvents
	case aggregatePayment:
		topic = kafka.TopicPaymentEvents
	default:
		return replayRecord{}, fmt.Errorf("unknown aggregate type %q in dlq record %s", outbox.AggregateType, outbox.ID)
	}

	envelope := replayEnvelope{
		ID:            outbox.ID,
		AggregateType: outbox.AggregateType,
		AggregateID:   outbox.AggregateID,
		EventType:     outbox.EventType,
		Payload:       json.RawMessage(outbox.Payload),
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return replayRecord{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := outbox.AggregateID
	if key == "" {
		key = outbox.ID
	}

	return replayRecord{
		topic:     topic,
		key:       key,
		value:     encoded,
		aggregate: outbox.AggregateType,
		eventType: outbox.EventType,
	}, nil
}

func matchesFilters(record replayRecord, opts options) bool {
	if opts.aggregate != "" && record.aggregate != opts.aggregate {
		return false
	}
	if opts.eventType != "" && record.eventType != opts.eventType {
		return false
	}
	return true
}

func publishRecord(publisher eventPublisher, record replayRecord) error {
	if publisher == nil {
		return fmt.Errorf("publisher is nil")
	}

	msg := &sarama.ProducerMessage{
		Topic:     record.topic,
		Key:       sarama.StringEncoder(record.key),
		Value:     sarama.ByteEncoder(record.value),
		Timestamp: time.Now().UTC(),
	}

	_, _, err := publisher.SendMessage(msg)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
