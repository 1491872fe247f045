package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/workforce-scheduling/internal/adapters/authz"
	"github.com/ogurasousui/workforce-scheduling/internal/adapters/grpc/handler"
	"github.com/ogurasousui/workforce-scheduling/internal/adapters/repository/postgres"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/attendance"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/config"
	pg "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/logging"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/metrics"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/server"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize logger")
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database pool")
	}
	defer dbPool.Close()

	mode, err := publishlock.ParseMode(cfg.Scheduling.LockMode)
	if err != nil {
		logger.WithError(err).Fatal("invalid scheduling.lock_mode")
	}

	authorizer, err := authz.NewEnforcer(cfg.Authz.Roles)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize authorizer")
	}

	txManager := pg.NewTransactionManager(dbPool,
		pg.WithMaxAttempts(cfg.Database.TxMaxAttempts),
		pg.WithTxLogger(logger.WithField("component", "postgres")),
	)
	locker := pg.NewAdvisoryLocker()

	windowRepo := postgres.NewWindowRepository(dbPool)
	shiftRepo := postgres.NewShiftRepository(dbPool)
	approvalRepo := postgres.NewApprovalRepository(dbPool)
	timeEntryRepo := postgres.NewTimeEntryRepository(dbPool)
	recorder := audit.NewBestEffort(postgres.NewAuditRepository(dbPool), nil, logger.WithField("component", "audit"))

	gate := schedule.NewGate(mode, cfg.Scheduling.Location, logger.WithField("component", "publishlock"))

	scheduleSvc := schedule.NewService(schedule.Dependencies{
		Shifts:     shiftRepo,
		Windows:    windowRepo,
		Locker:     locker,
		Authorizer: authorizer,
		Audit:      recorder,
		Gate:       gate,
		Tx:         txManager,
	})

	approvalSvc := approval.NewService(approvalRepo, authorizer, recorder, nil, txManager)
	approvalSvc.RegisterEffect(approval.KindLeave, schedule.NewLeaveEffect(shiftRepo, windowRepo, approvalRepo, locker, gate))
	approvalSvc.RegisterEffect(approval.KindSwap, schedule.NewSwapEffect(shiftRepo, windowRepo, locker, gate))
	approvalSvc.RegisterEffect(approval.KindCorrection, attendance.NewCorrectionEffect(timeEntryRepo, locker))

	attendanceSvc := attendance.NewService(timeEntryRepo, locker, authorizer, recorder, nil, txManager)

	m := metrics.New()
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			logger.WithField("addr", cfg.Metrics.ListenAddr).Info("metrics endpoint listening")
			if err := m.Serve(ctx, cfg.Metrics.ListenAddr, cfg.Metrics.Path); err != nil {
				logger.WithError(err).Error("metrics endpoint stopped")
			}
		}()
	}

	grpcServer := server.New(cfg.Server.ListenAddr, server.Services{
		Scheduling: handler.NewSchedulingHandler(scheduleSvc),
		Approval:   handler.NewApprovalHandler(approvalSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
	}, logger, m)

	logger.WithFields(logrus.Fields{
		"addr":      cfg.Server.ListenAddr,
		"lock_mode": mode,
		"timezone":  cfg.Scheduling.Timezone,
	}).Info("gRPC server listening")

	if err := grpcServer.Run(ctx); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
}
