package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

const sourceDynamo = "dynamo"

// NewDynamoClient builds a DynamoDB client for region. A non-empty endpoint
// points the client at a local or emulated table service.
func NewDynamoClient(region, endpoint string) (dynamodbiface.DynamoDBAPI, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return dynamodb.New(sess), nil
}

// DynamoSource polls a DynamoDB table and emits its first fetch-limit items
// as a batch whenever they change. No ordering is requested from the table.
type DynamoSource struct {
	client dynamodbiface.DynamoDBAPI
	table  string
	cfg    settings
}

// NewDynamoSource returns a source reading table through client.
func NewDynamoSource(client dynamodbiface.DynamoDBAPI, table string, opts ...Option) *DynamoSource {
	return &DynamoSource{
		client: client,
		table:  table,
		cfg:    newSettings("source.dynamo", opts),
	}
}

// Subscribe starts polling. The first poll runs immediately.
func (s *DynamoSource) Subscribe(ctx context.Context, sink Sink) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go s.run(ctx, sink, done)
	return newSubscription(cancel, done), nil
}

// pollState tracks what the sink has accepted. Rejected events leave it
// unchanged so the next poll offers them again.
type pollState struct {
	known     bool
	connected bool
	emitted   bool
	last      uint64
}

func (p *pollState) setConnected(ctx context.Context, sink Sink, connected bool) {
	if p.known && p.connected == connected {
		return
	}
	if sink.OnConnectionState(ctx, connected) {
		p.known, p.connected = true, connected
	}
}

func (s *DynamoSource) run(ctx context.Context, sink Sink, done chan<- struct{}) {
	defer close(done)

	s.cfg.logger.Info(ctx, "polling table",
		logger.String("table", s.table),
		logger.Duration("interval", s.cfg.interval),
		logger.Int("limit", s.cfg.limit),
	)

	ticker := time.NewTicker(s.cfg.interval)
	defer ticker.Stop()

	var state pollState
	for {
		if err := s.poll(ctx, sink, &state); err != nil {
			s.fail(ctx, sink, ticker, err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fail offers err to the sink on every tick until it is taken or ctx ends.
func (s *DynamoSource) fail(ctx context.Context, sink Sink, ticker *time.Ticker, err error) {
	for !sink.OnFatalError(ctx, err) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one scan. A non-nil error ends the subscription.
func (s *DynamoSource) poll(ctx context.Context, sink Sink, state *pollState) error {
	out, err := s.client.ScanWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
		Limit:     aws.Int64(int64(s.cfg.limit)),
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		if isNotFound(err) {
			metrics.RecordSourceError(sourceDynamo, "not_found")
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.table)
		}
		metrics.RecordSourceError(sourceDynamo, "scan")
		s.cfg.logger.Warn(ctx, "scan failed", logger.String("table", s.table), logger.Error(err))
		state.setConnected(ctx, sink, false)
		return nil
	}

	var items []map[string]any
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
		metrics.RecordSourceError(sourceDynamo, "decode")
		s.cfg.logger.Warn(ctx, "decode items failed", logger.Error(err))
		return nil
	}
	state.setConnected(ctx, sink, true)

	docs := make([]model.Document, len(items))
	for i, item := range items {
		docs[i] = item
	}

	fp, ok := fingerprint(docs)
	if ok && state.emitted && fp == state.last {
		return nil
	}

	if sink.OnBatch(ctx, model.Batch{
		ID:         uuid.NewString(),
		Documents:  docs,
		ReceivedAt: s.cfg.now(),
	}) {
		state.emitted, state.last = true, fp
	}
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException
}

// fingerprint hashes the canonical JSON form of docs; map keys are encoded
// in sorted order so equal contents hash equally.
func fingerprint(docs []model.Document) (uint64, bool) {
	b, err := json.Marshal(docs)
	if err != nil {
		return 0, false
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64(), true
}
