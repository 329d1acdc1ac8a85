package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

func TestAppendRecordsInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "products")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawler.ProductRecord{
		Title:        "Cordless Drill 20V",
		Price:        "$89.00",
		Rating:       "4.6 out of 5 stars",
		ReviewsCount: "1,204 ratings",
		Features:     []string{"Brushless motor"},
		Details:      map[string]string{"Voltage": "20 Volts"},
		URL:          "https://example.com/dp/B001",
		FetchedAt:    now,
	}

	mock.ExpectExec("INSERT INTO products").
		WithArgs(
			"products_20231114_abcd1234",
			rec.Title,
			rec.Price,
			rec.Rating,
			rec.ReviewsCount,
			[]byte(`["Brushless motor"]`),
			[]byte(`{"Voltage":"20 Volts"}`),
			rec.URL,
			rec.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = sink.AppendRecords(context.Background(), []crawler.ProductRecord{rec}, "products_20231114_abcd1234")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "products; drop table users")
	require.Error(t, err)

	_, err = NewWithPool(nil, "products")
	require.Error(t, err)
}
