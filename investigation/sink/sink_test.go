package sink_test

import (
	"context"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/olorin-ai/hybrid-investigator/investigation/outcome"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/sink"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

var _ = Describe("Sink", func() {
	// BR-HIO-602: persist/update_progress/store_transaction_scores against
	// PostgreSQL (§6.6).
	var (
		db   *sqlx.DB
		mock sqlmock.Sqlmock
		s    *sink.Sink
		ctx  context.Context
	)

	BeforeEach(func() {
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())

		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		logger, _ := logrustest.NewNullLogger()
		s = sink.New(db, logger.WithField("test", true))
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		db.Close()
	})

	It("upserts the canonical outcome and raw state", func() {
		mock.ExpectExec("INSERT INTO investigation_outcomes").
			WillReturnResult(sqlmock.NewResult(1, 1))

		out := outcome.CanonicalFinalOutcome{
			InvestigationID:     "inv-1",
			EntityID:            "user-1",
			Status:              outcome.StatusCompleted,
			Success:              true,
			CompletionTimestamp: time.Now(),
		}
		rawState := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1"})

		err := s.Persist(ctx, "inv-1", out, &rawState)
		Expect(err).NotTo(HaveOccurred())
	})

	It("writes progress and publishes a pg_notify", func() {
		mock.ExpectExec("INSERT INTO investigation_progress").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("SELECT pg_notify").
			WillReturnResult(sqlmock.NewResult(0, 0))

		risk := 0.42
		err := s.UpdateProgress(ctx, "inv-1", ports.ProgressUpdate{
			RiskScore:          &risk,
			Status:             "in_progress",
			CurrentPhase:       state.PhaseDomainAnalysis,
			ProgressPercentage: 40,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores each transaction score inside a single transaction", func() {
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO investigation_transaction_scores")
		mock.ExpectExec("INSERT INTO investigation_transaction_scores").
			WithArgs("inv-1", "txn-1", 0.9).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := s.StoreTransactionScores(ctx, "inv-1", map[string]float64{"txn-1": 0.9})
		Expect(err).NotTo(HaveOccurred())
	})

	It("is a no-op when there are no transaction scores to store", func() {
		err := s.StoreTransactionScores(ctx, "inv-1", map[string]float64{})
		Expect(err).NotTo(HaveOccurred())
	})
})
