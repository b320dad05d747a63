package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

// orderEventKeyColumns must exist on the order events table before the worker
// starts streaming into it.
var orderEventKeyColumns = []string{"event_id", "event_type", "aggregate_id", "occurred_at"}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client is the analytics worker's handle on the Klinic dataset.
type Client struct {
	client      *bigquery.Client
	dataset     *bigquery.Dataset
	orderEvents string
}

// NewClient opens the dataset and refuses to start when the dataset or the
// order events table is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	orderEvents := strings.TrimSpace(cfg.OrderEventsTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case orderEvents == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		client:      bq,
		dataset:     bq.Dataset(datasetID),
		orderEvents: orderEvents,
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "table": orderEvents}), "bigquery dataset verified")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that the dataset exists and the order events table carries the
// key columns.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeLookup("dataset", c.dataset.DatasetID, err)
	}
	meta, err := c.dataset.Table(c.orderEvents).Metadata(ctx)
	if err != nil {
		return describeLookup("table", c.orderEvents, err)
	}
	if missing := missingColumns(meta.Schema, orderEventKeyColumns); len(missing) > 0 {
		return fmt.Errorf("table %q is missing columns %s", c.orderEvents, strings.Join(missing, ", "))
	}
	return nil
}

// InsertRows streams rows into table. Rows should implement bigquery.ValueSaver.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// OrderEventsTable is the configured order events table name.
func (c *Client) OrderEventsTable() string {
	if c == nil {
		return ""
	}
	return c.orderEvents
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func missingColumns(schema bigquery.Schema, want []string) []string {
	have := make(map[string]struct{}, len(schema))
	for _, field := range schema {
		if field != nil {
			have[strings.ToLower(field.Name)] = struct{}{}
		}
	}
	var missing []string
	for _, name := range want {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func describeLookup(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
