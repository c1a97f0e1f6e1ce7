package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/juju/clock"

	"github.com/ahmedsayedsa/orderbot/internal/cloud"
	"github.com/ahmedsayedsa/orderbot/internal/config"
	"github.com/ahmedsayedsa/orderbot/internal/easyorder"
	"github.com/ahmedsayedsa/orderbot/internal/ledger"
)

// deps are the shared collaborators every command wires up: the sync ledger,
// the storefront client and the optional AWS integrations.
type deps struct {
	ledger    ledger.Ledger
	client    *easyorder.Client
	metrics   *cloud.Metrics
	publisher *cloud.OutcomePublisher
}

func buildDeps(ctx context.Context, cfg config.Config, clk clock.Clock) (*deps, error) {
	clients, err := cloud.NewClients(ctx)
	if err != nil {
		if cfg.Ledger.Backend == "dynamodb" {
			return nil, fmt.Errorf("dynamodb ledger needs AWS clients: %w", err)
		}
		log.Printf("[cli] AWS unavailable, running without metrics and outcome events: %v", err)
		clients = nil
	}

	var led ledger.Ledger
	switch cfg.Ledger.Backend {
	case "dynamodb":
		led = ledger.NewDynamoLedger(clients.DynamoDB, cfg.Ledger.SuccessTable, cfg.Ledger.FailureTable)
	default:
		led = ledger.NewFileLedger(cfg.DataDir)
	}

	d := &deps{ledger: led}
	if clients != nil {
		d.metrics = cloud.NewMetrics(clients.CloudWatch, cfg.AWS.MetricsNamespace)
		if cfg.AWS.OutcomeQueueURL != "" {
			d.publisher = cloud.NewOutcomePublisher(clients.SQS, cfg.AWS.OutcomeQueueURL)
		}
	}

	d.client = easyorder.New(easyorder.Config{
		BaseURL:       cfg.Sync.BaseURL,
		BackupURL:     cfg.Sync.BackupURL,
		APIKey:        cfg.Sync.APIKey,
		WebhookSecret: cfg.Sync.WebhookSecret,
		MaxRetries:    cfg.Sync.MaxRetries,
		RetryDelay:    cfg.Sync.RetryDelay,
		Timeout:       cfg.Sync.Timeout,
	}, led, d.metrics, clk)
	return d, nil
}
