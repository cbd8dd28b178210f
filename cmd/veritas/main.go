package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/device"
	"github.com/veritas-ponto/veritas-api/internal/events"
	"github.com/veritas-ponto/veritas-api/internal/handler"
	"github.com/veritas-ponto/veritas-api/internal/mailer"
	"github.com/veritas-ponto/veritas-api/internal/models"
	"github.com/veritas-ponto/veritas-api/internal/repository"
	"github.com/veritas-ponto/veritas-api/internal/router"
	serialtransport "github.com/veritas-ponto/veritas-api/internal/serial"
	"github.com/veritas-ponto/veritas-api/internal/service"
	"github.com/veritas-ponto/veritas-api/pkg/cache"
	"github.com/veritas-ponto/veritas-api/pkg/config"
	"github.com/veritas-ponto/veritas-api/pkg/database"
	"github.com/veritas-ponto/veritas-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewSQLite(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}
	store := cache.NewStore(redisClient, cfg.Dashboard.CacheTTL)

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	hub := events.NewHub(logr)
	validate := validator.New()
	metrics := service.NewMetricsService()

	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)
	var notifier *mailer.Notifier
	if smtpMailer.Enabled() {
		notifier = mailer.NewNotifier(smtpMailer, cfg.Reports.MailWorkers, cfg.Reports.MailRetries, logr)
	}

	transport := serialtransport.NewTransport(nil, cfg.Serial.Baud, logr)
	sender := device.NewCommandSender(countingWriter{transport: transport, metrics: metrics}, logr)

	attendanceSvc := service.NewAttendanceService(activityRepo, absenceRepo, userRepo, hub, notifierOrNil(notifier), validate, logr)
	enrollmentSvc := service.NewEnrollmentService(sender, userRepo, hub, cfg.Enrollment.Timeout, cfg.Enrollment.DeleteTimeout, validate, logr)
	userSvc := service.NewUserService(userRepo, hub, validate, logr)
	authSvc := service.NewAuthService(adminRepo, cfg.JWT, validate, logr)
	dashboardSvc := service.NewDashboardService(activityRepo, absenceRepo, userRepo, store, logr)
	exportSvc := service.NewExportService(activityRepo, absenceRepo, nil, nil, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, logr)
	deviceSvc := service.NewDeviceService(transport, sender, serialtransport.ListPorts, hub, validate, logr)

	engine := device.NewEngine(enrollmentSvc, attendanceSvc, sender, logr)
	transport.OnLine(func(line string) {
		metrics.ObserveSerialLine("in")
		engine.HandleLine(line)
	})
	transport.OnStatus(func(ev serialtransport.StatusEvent) {
		metrics.SetDeviceConnected(ev.Status == serialtransport.StatusConnected)
		hub.Publish(events.TypeDeviceStatus, ev)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if notifier != nil {
		notifier.Start(ctx)
		defer notifier.Stop()
	}

	if cfg.Serial.Path != "" {
		if err := transport.Open(cfg.Serial.Path); err != nil {
			logr.Sugar().Warnw("failed to open configured serial port", "path", cfg.Serial.Path, "error", err)
		} else if err := sender.SetTime(time.Now()); err != nil {
			logr.Sugar().Warnw("failed to sync sensor clock", "error", err)
		}
	}
	defer transport.Close()

	go watchEvents(ctx, hub, metrics, dashboardSvc)

	if cfg.Absences.InitializeOnStart {
		if _, err := attendanceSvc.InitializeAbsences(ctx, time.Now()); err != nil {
			logr.Sugar().Warnw("failed to initialize absences", "error", err)
		}
	}
	go absenceTicker(ctx, attendanceSvc, logr)

	handlers := router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc, enrollmentSvc),
		Activity:  handler.NewActivityHandler(attendanceSvc),
		Absences:  handler.NewAbsenceHandler(attendanceSvc),
		Device:    handler.NewDeviceHandler(deviceSvc, enrollmentSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Reports:   handler.NewReportHandler(exportSvc),
		Settings:  handler.NewSettingsHandler(settingsSvc),
		Events:    handler.NewEventsHandler(hub),
	}
	r := router.New(cfg, logr, authSvc, metrics, handlers)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// notifierOrNil keeps the attendance service's notifier interface nil
// when mail is not configured; a typed nil pointer would not compare
// equal to nil inside the service.
func notifierOrNil(n *mailer.Notifier) service.ActivityNotifier {
	if n == nil {
		return nil
	}
	return n
}

// countingWriter counts outbound serial lines on their way to the port.
type countingWriter struct {
	transport *serialtransport.Transport
	metrics   *service.MetricsService
}

func (w countingWriter) Write(data []byte) error {
	w.metrics.ObserveSerialLine("out")
	return w.transport.Write(data)
}

func (w countingWriter) IsOpen() bool {
	return w.transport.IsOpen()
}

// watchEvents feeds domain events into the metrics counters and drops
// the dashboard cache whenever the figures it summarises change.
func watchEvents(ctx context.Context, hub *events.Hub, metrics *service.MetricsService, dashboard *service.DashboardService) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Type {
			case events.TypeActivity:
				if activity, ok := ev.Payload.(*models.Activity); ok {
					metrics.ObserveActivity(string(activity.Type))
				}
				dashboard.InvalidateCache(ctx)
			case events.TypeAbsenceAdded, events.TypeAbsenceDeleted:
				dashboard.InvalidateCache(ctx)
			case events.TypeBiometricStatus:
				if payload, ok := ev.Payload.(map[string]interface{}); ok {
					switch payload["status"] {
					case "sucesso", "erro", "timeout":
						metrics.ObserveEnrollment(payload["status"].(string))
					}
				}
			}
		}
	}
}

// absenceTicker seeds the ledger shortly after each local midnight.
func absenceTicker(ctx context.Context, attendance *service.AttendanceService, logr *zap.Logger) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 1, 0, 0, time.Local).AddDate(0, 0, 1)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := attendance.InitializeAbsences(ctx, time.Now()); err != nil {
				logr.Sugar().Warnw("midnight absence initialization failed", "error", err)
			}
		}
	}
}
