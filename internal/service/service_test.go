package service

import (
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/errwatch/issue-lifecycle-service/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDBAndTx(t *testing.T) (*sqlx.DB, *sqlx.Tx, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, smock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")

	smock.ExpectBegin()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	return sqlxDB, tx, smock
}

type serviceMocks struct {
	transactor *TransactorMock
	groups     *GroupQueryRepositoryMock
	groupCmd   *GroupCommandRepositoryMock
	records    *RecordRepositoryMock
	links      *LinkRepositoryMock
	projects   *ProjectRepositoryMock
	stream     *NotifierMock
	rates      *RateProviderMock
	queue      *EnqueuerMock
	syncer     *StatusSyncerMock
}

func newTestService(features config.Features) (*GroupServiceImpl, *serviceMocks) {
	m := &serviceMocks{
		transactor: new(TransactorMock),
		groups:     new(GroupQueryRepositoryMock),
		groupCmd:   new(GroupCommandRepositoryMock),
		records:    new(RecordRepositoryMock),
		links:      new(LinkRepositoryMock),
		projects:   new(ProjectRepositoryMock),
		stream:     new(NotifierMock),
		rates:      new(RateProviderMock),
		queue:      new(EnqueuerMock),
		syncer:     new(StatusSyncerMock),
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	svc := NewGroupService(
		m.transactor,
		log,
		m.groups,
		m.groupCmd,
		m.records,
		m.links,
		m.projects,
		m.stream,
		NewSnoozeEvaluator(m.rates),
		m.queue,
		m.syncer,
		features,
	)

	return svc, m
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	t.Helper()

	m.transactor.AssertExpectations(t)
	m.groups.AssertExpectations(t)
	m.groupCmd.AssertExpectations(t)
	m.records.AssertExpectations(t)
	m.links.AssertExpectations(t)
	m.projects.AssertExpectations(t)
	m.stream.AssertExpectations(t)
	m.rates.AssertExpectations(t)
	m.queue.AssertExpectations(t)
	m.syncer.AssertExpectations(t)
}
