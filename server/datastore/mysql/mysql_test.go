package mysql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/VividCortex/mysqlerr"
	"github.com/WatchBeam/clock"
	"github.com/go-kit/kit/log"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/server/config"
	"github.com/pushgate/pushgate/server/pushgate"
)

func newMockDatastore(t *testing.T) (*Datastore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	dbx := sqlx.NewDb(db, "sqlmock")
	ds := &Datastore{
		reader: dbx,
		writer: dbx,
		logger: log.NewNopLogger(),
		clock:  clock.NewMockClock(),
	}
	return ds, mock
}

func TestVariantByVariantIDNotFound(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	mock.ExpectQuery("SELECT (.+) FROM variants").
		WithArgs("no-such-variant").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := ds.VariantByVariantID(context.Background(), "no-such-variant")
	require.Error(t, err)
	assert.True(t, pushgate.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEndpointsByCriteriaEmptyCriteria(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	rows := sqlmock.NewRows([]string{"endpoint_id"}).
		AddRow("tok1").
		AddRow("tok2")
	mock.ExpectQuery(`SELECT DISTINCT .i.\..endpoint_id. FROM .installations. AS .i.`).
		WillReturnRows(rows)

	endpoints, err := ds.ListEndpointsByCriteria(context.Background(), "variant-1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1", "tok2"}, endpoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEndpointsByCriteriaFilters(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	// The category dimension renders as an EXISTS subquery so that a device
	// with several categories still yields a single row.
	mock.ExpectQuery(`SELECT DISTINCT (.+) WHERE (.+)alias(.+)device_type(.+)EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint_id"}).AddRow("tok1"))

	endpoints, err := ds.ListEndpointsByCriteria(context.Background(), "variant-1", &pushgate.Criteria{
		Categories:  []string{"sports", "news"},
		Aliases:     []string{"alice@example.com"},
		DeviceTypes: []string{"iPhone"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1"}, endpoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListInstallationsByEndpointsEmptySet(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	// No expectations were set: an empty endpoint set must not hit the DB.
	installations, err := ds.ListInstallationsByEndpoints(context.Background(), "variant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, installations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInstallationsByEndpointsEmptySet(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	deleted, err := ds.DeleteInstallationsByEndpoints(context.Background(), "variant-1", []string{})
	require.NoError(t, err)
	assert.Equal(t, uint(0), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInstallationsByEndpoints(t *testing.T) {
	ds, mock := newMockDatastore(t)
	defer ds.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM installations").
		WithArgs("variant-1", "tok1", "tok2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	deleted, err := ds.DeleteInstallationsByEndpoints(context.Background(), "variant-1", []string{"tok1", "tok2"})
	require.NoError(t, err)
	assert.Equal(t, uint(2), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryableError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadlock", &mysql.MySQLError{Number: mysqlerr.ER_LOCK_DEADLOCK}, true},
		{"lock wait timeout", &mysql.MySQLError{Number: mysqlerr.ER_LOCK_WAIT_TIMEOUT}, true},
		{"duplicate entry", &mysql.MySQLError{Number: mysqlerr.ER_DUP_ENTRY}, false},
		{"wrapped deadlock", errors.Wrap(&mysql.MySQLError{Number: mysqlerr.ER_LOCK_DEADLOCK}, "insert"), true},
		{"plain error", errors.New("not a mysql error"), false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, retryableError(tt.err))
		})
	}
}

func TestGenerateMysqlConnectionString(t *testing.T) {
	conf := config.MysqlConfig{
		Protocol: "tcp",
		Address:  "localhost:3306",
		Username: "pushd",
		Password: "pushdpass",
		Database: "pushd",
	}
	dsn := generateMysqlConnectionString(conf)
	assert.Equal(t,
		"pushd:pushdpass@tcp(localhost:3306)/pushd?charset=utf8mb4&parseTime=true&loc=UTC&time_zone=%27-00%3A00%27&clientFoundRows=true&allowNativePasswords=true",
		dsn,
	)
}
