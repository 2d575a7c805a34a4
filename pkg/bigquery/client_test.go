package bigquery

import (
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/digimart-backend/pkg/config"
)

type sampleRow struct {
	EventID    string    `bigquery:"event_id"`
	OccurredAt time.Time `bigquery:"occurred_at"`
	Amount     *int64    `bigquery:"amount"`
}

func TestNormalizeTablesDropsBlankNames(t *testing.T) {
	specs, err := normalizeTables([]TableSpec{{Name: " marketplace_events "}, {Name: "  "}})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "marketplace_events", specs[0].Name)

	_, err = normalizeTables([]TableSpec{{Name: ""}})
	assert.Error(t, err)
}

func TestTableMetadataInfersSchemaAndPartitioning(t *testing.T) {
	meta, err := tableMetadata(TableSpec{Name: "marketplace_events", Row: sampleRow{}, PartitionField: "occurred_at"})
	require.NoError(t, err)

	names := make([]string, 0, len(meta.Schema))
	for _, field := range meta.Schema {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"event_id", "occurred_at", "amount"}, names)
	require.NotNil(t, meta.TimePartitioning)
	assert.Equal(t, bigquery.DayPartitioningType, meta.TimePartitioning.Type)
	assert.Equal(t, "occurred_at", meta.TimePartitioning.Field)

	plain, err := tableMetadata(TableSpec{Name: "t", Row: sampleRow{}})
	require.NoError(t, err)
	assert.Nil(t, plain.TimePartitioning)
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(nil))
}

func TestNilClientIsNotInitialized(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(t.Context()), errNotInitialized)
	assert.ErrorIs(t, c.InsertRows(t.Context(), "t", []any{1}), errNotInitialized)
	assert.NoError(t, c.Close())
}
