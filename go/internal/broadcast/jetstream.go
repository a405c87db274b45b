package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "GEORGETOWN_SYNC",
		SubjectPrefix:   ChannelName,
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		DuplicateWindow: 10 * time.Minute,
	}
}

// JetStreamChannel carries the cross-terminal channel over a JetStream
// stream. Completion broadcasts use the transaction id as the message id so
// the server drops a second publish of the same completion.
type JetStreamChannel struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamChannel(ctx context.Context, cfg JetStreamConfig) (*JetStreamChannel, error) {
	opts := []nats.Option{
		nats.Name("cashierd"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c := &JetStreamChannel{nc: nc, js: js, config: cfg}
	if err := c.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return c, nil
}

func (c *JetStreamChannel) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        c.config.StreamName,
		Description: "Draw cycle sync between cashier terminals",
		Subjects:    []string{fmt.Sprintf("%s.>", c.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Duplicates:  c.config.DuplicateWindow,
	}

	if _, err := c.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", c.config.StreamName).Msg("JetStream stream ready")
	return nil
}

func (c *JetStreamChannel) Publish(ctx context.Context, msg Message) error {
	subject := fmt.Sprintf("%s.%s", c.config.SubjectPrefix, msg.Type)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msgID := msg.TransactionID
	if msgID == "" {
		msgID = msg.Origin + "-" + string(msg.Type) + "-" + strconv.FormatInt(msg.Timestamp, 10)
	}

	ack, err := c.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Message-Type": []string{string(msg.Type)},
			"Origin":       []string{msg.Origin},
		},
	},
		jetstream.WithMsgID(msgID),
		jetstream.WithExpectStream(c.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	if ack.Duplicate {
		log.Debug().Str("msg_id", msgID).Msg("JetStream dropped duplicate broadcast")
	}
	return nil
}

// Subscribe attaches an ordered ephemeral consumer that only sees messages
// published after the call, matching a tab joining the channel.
func (c *JetStreamChannel) Subscribe(ctx context.Context, h Handler) (func(), error) {
	cons, err := c.js.OrderedConsumer(ctx, c.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{fmt.Sprintf("%s.>", c.config.SubjectPrefix)},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data(), &m); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode broadcast")
			return
		}
		h(m)
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	return cc.Stop, nil
}

func (c *JetStreamChannel) Close() error {
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}
