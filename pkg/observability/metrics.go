// Package observability records service metrics in CloudWatch and traces in X-Ray.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/ports"
)

// maxDatums is the number of data points sent per PutMetricData call.
const maxDatums = 500

// CloudWatchClient is the call Metrics needs.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics buffers data points and sends them to CloudWatch on Flush.
// Recording never blocks on the network.
type Metrics struct {
	namespace string
	client    CloudWatchClient
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
}

var _ ports.Metrics = (*Metrics)(nil)

func NewMetrics(namespace string, client CloudWatchClient, logger *zap.Logger) *Metrics {
	return &Metrics{namespace: namespace, client: client, logger: logger}
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) RecordCommandExecution(_ context.Context, commandName string, duration time.Duration, err error) {
	dims := []types.Dimension{
		{Name: aws.String("CommandName"), Value: aws.String(commandName)},
		{Name: aws.String("Status"), Value: aws.String(status(err))},
	}
	now := time.Now()
	m.add(
		types.MetricDatum{
			MetricName: aws.String("CommandExecution"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Microseconds()) / 1000),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		types.MetricDatum{
			MetricName: aws.String("CommandCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	)
}

func (m *Metrics) RecordMessage(_ context.Context, msgType string, applied bool) {
	result := "applied"
	if !applied {
		result = "ignored"
	}
	m.add(types.MetricDatum{
		MetricName: aws.String("InboundMessage"),
		Dimensions: []types.Dimension{
			{Name: aws.String("MessageType"), Value: aws.String(msgType)},
			{Name: aws.String("Result"), Value: aws.String(result)},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	})
}

func (m *Metrics) add(d ...types.MetricDatum) {
	if m.client == nil {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, d...)
	m.mu.Unlock()
}

// Flush sends every buffered data point.
func (m *Metrics) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for i := 0; i < len(pending); i += maxDatums {
		end := min(i+maxDatums, len(pending))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[i:end],
		})
		if err != nil {
			m.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("dropped", len(pending)-i))
			return err
		}
	}
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (m *Metrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = m.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = m.Flush(flushCtx)
			cancel()
			return
		}
	}
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordCommandExecution(context.Context, string, time.Duration, error) {}
func (NopMetrics) RecordMessage(context.Context, string, bool)                       {}
