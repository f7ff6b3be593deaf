package instrument_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/instrument"
)

func TestSQLSink_RecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `trace_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sink, err := instrument.NewSQLSinkFromDB("mysql", db)
	require.NoError(t, err)

	ev := instrument.TraceEvent{TaskID: 1, ParentID: 0, Kind: instrument.EventSpawn, Label: "root"}
	require.NoError(t, sink.Record(context.Background(), ev))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSink_UnsupportedDriverIsError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = instrument.NewSQLSinkFromDB("carrier-pigeon", db)
	assert.Error(t, err)
}
