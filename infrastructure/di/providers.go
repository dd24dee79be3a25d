package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/application/services"
	"github.com/panel-extensions/panel-reactflow/domain/store"
	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
	"github.com/panel-extensions/panel-reactflow/infrastructure/messaging/eventbridge"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/badger"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/dynamodb"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/memory"
	"github.com/panel-extensions/panel-reactflow/interfaces/websocket"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
	"github.com/panel-extensions/panel-reactflow/pkg/observability"
)

const serviceName = "panel-reactflow"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideAPIGatewayClient creates a management API client bound to the
// WebSocket stage endpoint.
func ProvideAPIGatewayClient(awsCfg aws.Config, cfg *config.Config) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
		if cfg.WebSocketEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.WebSocketEndpoint)
		}
	})
}

// Storage groups the repositories of the configured backend.
type Storage struct {
	Snapshots   ports.SnapshotRepository
	Connections ports.ConnectionRepository
}

// ProvideStorage opens the repositories selected by STORAGE_BACKEND. The
// cleanup closes the badger database.
func ProvideStorage(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Storage, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageDynamoDB:
		return &Storage{
			Snapshots:   dynamodb.NewSnapshotRepository(client, cfg.TableName, logger),
			Connections: dynamodb.NewConnectionRepository(client, cfg.ConnectionsTable, logger),
		}, func() {}, nil
	case config.StorageBadger:
		db, err := badger.Open(badger.Options{Dir: cfg.BadgerDir, SyncWrites: cfg.IsProduction()}, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close badger", zap.Error(err))
			}
		}
		return &Storage{Snapshots: db, Connections: db}, cleanup, nil
	default:
		return &Storage{
			Snapshots:   memory.NewSnapshotRepository(),
			Connections: memory.NewConnectionRepository(),
		}, func() {}, nil
	}
}

func ProvideSnapshotRepository(s *Storage) ports.SnapshotRepository { return s.Snapshots }

func ProvideConnectionRepository(s *Storage) ports.ConnectionRepository { return s.Connections }

// ProvideEventPublisher returns nil when no event bus is configured, which
// turns event fan-out off.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates the metrics recorder. Without ENABLE_METRICS it
// has no client and records nothing.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	var cw observability.CloudWatchClient
	if cfg.EnableMetrics {
		cw = client
	}
	return observability.NewMetrics(cfg.MetricsNamespace, cw, logger)
}

func ProvideServiceMetrics(m *observability.Metrics) ports.Metrics { return m }

func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer(serviceName)
}

// ProvideValidator returns nil when no JWT secret is set; the transports
// then accept anonymous clients.
func ProvideValidator(cfg *config.Config) (*auth.Validator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideGraphDefinition loads GRAPH_FILE, or an empty definition.
func ProvideGraphDefinition(cfg *config.Config) (*config.GraphDefinition, error) {
	if cfg.GraphFile == "" {
		return &config.GraphDefinition{}, nil
	}
	return config.LoadGraphFile(cfg.GraphFile)
}

func ProvideHub(cfg *config.Config, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(cfg.GraphID, logger)
}

func ProvideHubSender(h *websocket.Hub) store.Sender { return h }

func ProvideBroadcaster(cfg *config.Config, client *apigatewaymanagementapi.Client, connections ports.ConnectionRepository, logger *zap.Logger) *websocket.Broadcaster {
	return websocket.NewBroadcaster(cfg.GraphID, client, connections, logger)
}

func ProvideBroadcasterSender(b *websocket.Broadcaster) store.Sender { return b }

// ProvideFlow builds the flow from the graph definition. Settings in the
// file win over the environment; validation flags are enabled by either.
// The sender is attached after the initial nodes are added.
func ProvideFlow(cfg *config.Config, def *config.GraphDefinition, sender store.Sender, logger *zap.Logger) (*flow.Flow, error) {
	mode := def.EditorMode
	if mode == "" {
		mode = cfg.EditorMode
	}
	f, err := def.Build(
		flow.WithEditorMode(mode),
		flow.WithValidateOnAdd(cfg.ValidateOnAdd || def.ValidateOnAdd),
		flow.WithValidateOnPatch(cfg.ValidateOnPatch || def.ValidateOnPatch),
		flow.WithLogger(logger.Named("flow")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph %q: %w", cfg.GraphID, err)
	}
	f.SetSender(sender)
	return f, nil
}

func ProvideGraphService(
	cfg *config.Config,
	f *flow.Flow,
	snapshots ports.SnapshotRepository,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.GraphService {
	return services.NewGraphService(services.Config{
		GraphID:           cfg.GraphID,
		AutosaveInterval:  cfg.AutosaveInterval,
		SaveOnEveryChange: cfg.SaveOnEveryChange,
	}, f, snapshots, publisher, metrics, logger)
}
