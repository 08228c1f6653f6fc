//go:build integration

package profile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"badguys/internal/profile/models"
	"badguys/internal/profile/store/profile"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/platform/tx"
	"badguys/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *profile.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = profile.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "profiles", "accounts"))
}

func newTestProfile(url string, createdAt time.Time) *models.Profile {
	p, _ := models.NewPendingProfile(domain.NewProfileID(), url,
		models.Analysis{Name: "Jane", Title: "Crypto Recruiter", RiskScore: 88, Rationale: "scam industry"},
		domain.UserID{}, createdAt.UTC().Truncate(time.Microsecond))
	return p
}

func (s *PostgresStoreSuite) insertAccount(id domain.UserID) {
	_, err := s.postgres.DB.ExecContext(context.Background(),
		`INSERT INTO accounts (id, email, password_hash, role) VALUES ($1, $2, 'x', 'admin')`,
		uuid.UUID(id), id.String()+"@example.com")
	s.Require().NoError(err)
}

// TestConcurrentDuplicateInsert verifies that concurrent inserts of one URL
// produce exactly one record.
func (s *PostgresStoreSuite) TestConcurrentDuplicateInsert() {
	ctx := context.Background()
	url := "https://linkedin.com/in/concurrent-" + uuid.NewString()[:8]
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestProfile(url, time.Now()))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get a duplicate error")

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	reporter := domain.NewUserID()
	s.insertAccount(reporter)

	p := newTestProfile("https://linkedin.com/in/roundtrip", time.Now())
	p.ReportedBy = &reporter
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByURL(ctx, p.SourceURL)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal(88, found.RiskScore)
	s.Equal(models.StatusPending, found.Status)
	s.Require().NotNil(found.DisplayName)
	s.Equal("Jane", *found.DisplayName)
	s.Require().NotNil(found.ReportedBy)
	s.Equal(reporter, *found.ReportedBy)
	s.True(found.CreatedAt.Equal(p.CreatedAt))
}

func (s *PostgresStoreSuite) TestAccountDeletionNullsReporter() {
	ctx := context.Background()
	reporter := domain.NewUserID()
	s.insertAccount(reporter)

	p := newTestProfile("https://linkedin.com/in/orphan", time.Now())
	p.ReportedBy = &reporter
	s.Require().NoError(s.store.Create(ctx, p))

	_, err := s.postgres.DB.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(reporter))
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Nil(found.ReportedBy)
}

func (s *PostgresStoreSuite) TestExecuteRollsBackOnValidationFailure() {
	ctx := context.Background()
	p := newTestProfile("https://linkedin.com/in/execute", time.Now())
	s.Require().NoError(s.store.Create(ctx, p))

	_, err := s.store.Execute(ctx, p.ID,
		func(*models.Profile) error { return errors.New("reject") },
		func(p *models.Profile) { p.IsActiveOnSource = false },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.True(found.IsActiveOnSource)

	updated, err := s.store.Execute(ctx, p.ID,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) { p.IsActiveOnSource = false },
	)
	s.Require().NoError(err)
	s.False(updated.IsActiveOnSource)
}

func (s *PostgresStoreSuite) TestConcurrentReportIncrements() {
	ctx := context.Background()
	p := newTestProfile("https://linkedin.com/in/popular", time.Now())
	s.Require().NoError(s.store.Create(ctx, p))

	const goroutines = 20
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementReports(ctx, p.SourceURL)
			s.NoError(err)
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(1+goroutines, found.ReportCount)
}

func (s *PostgresStoreSuite) TestPublicProjectionsAndCounts() {
	ctx := context.Background()
	now := time.Now()

	older := newTestProfile("https://linkedin.com/in/older", now.Add(-2*time.Hour))
	newer := newTestProfile("https://linkedin.com/in/newer", now.Add(-time.Hour))
	hidden := newTestProfile("https://linkedin.com/in/hidden", now)
	for _, p := range []*models.Profile{older, newer, hidden} {
		s.Require().NoError(s.store.Create(ctx, p))
	}
	for _, p := range []*models.Profile{older, newer} {
		_, err := s.store.UpdateStatus(ctx, p.ID, models.StatusVerified)
		s.Require().NoError(err)
	}
	_, err := s.store.IncrementReports(ctx, older.SourceURL)
	s.Require().NoError(err)

	latest, err := s.store.ListPublic(ctx, models.ListLatest, 5)
	s.Require().NoError(err)
	s.Require().Len(latest, 2)
	s.Equal(newer.ID, latest[0].ID)

	mostReported, err := s.store.ListPublic(ctx, models.ListMostReported, 1)
	s.Require().NoError(err)
	s.Require().Len(mostReported, 1)
	s.Equal(older.ID, mostReported[0].ID)

	verified := models.StatusVerified
	n, err := s.store.Count(ctx, models.Filter{Status: &verified})
	s.Require().NoError(err)
	s.Equal(2, n)

	inactive := false
	n, err = s.store.Count(ctx, models.Filter{IsActiveOnSource: &inactive})
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *PostgresStoreSuite) TestDeleteInsideCallerTransaction() {
	ctx := context.Background()
	p := newTestProfile("https://linkedin.com/in/txdelete", time.Now())
	s.Require().NoError(s.store.Create(ctx, p))

	runner := tx.NewSQLRunner(s.postgres.DB)
	boom := errors.New("abort")
	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		s.Require().NoError(s.store.Delete(txCtx, p.ID))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindByID(ctx, p.ID)
	s.NoError(err, "delete must roll back with the caller's transaction")

	s.Require().NoError(s.store.Delete(ctx, p.ID))
	_, err = s.store.IncrementReports(ctx, p.SourceURL)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
