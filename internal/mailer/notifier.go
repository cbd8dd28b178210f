package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/models"
	"github.com/veritas-ponto/veritas-api/pkg/jobs"
)

const jobTypeActivityMail = "activity-mail"

type activityMail struct {
	To       string
	Nome     string
	Type     models.ActivityType
	Occurred time.Time
}

// Notifier pushes attendance notification emails through a background
// queue so delivery never blocks the serial read path.
type Notifier struct {
	mailer Mailer
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifier builds a notifier with its own worker queue.
func NewNotifier(mailer Mailer, workers, retries int, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{mailer: mailer, logger: logger}
	n.queue = jobs.NewQueue("mail", n.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// NotifyActivity queues a clock event email for the user's registered
// address. Users without an address are skipped silently.
func (n *Notifier) NotifyActivity(user *models.User, activityType models.ActivityType, occurred time.Time) {
	if user == nil || user.Email == "" {
		return
	}
	err := n.queue.Enqueue(jobs.Job{
		Type: jobTypeActivityMail,
		Payload: activityMail{
			To:       user.Email,
			Nome:     user.Nome,
			Type:     activityType,
			Occurred: occurred,
		},
	})
	if err != nil {
		n.logger.Warn("failed to queue activity email", zap.String("to", user.Email), zap.Error(err))
	}
}

func (n *Notifier) handle(_ context.Context, job jobs.Job) error {
	mail, ok := job.Payload.(activityMail)
	if !ok {
		n.logger.Error("unexpected mail payload", zap.String("job_id", job.ID))
		return nil
	}

	var subject, action string
	if mail.Type == models.ActivityEntrada {
		subject = "Registro de Entrada"
		action = "entrada"
	} else {
		subject = "Registro de Saída"
		action = "saída"
	}
	body := fmt.Sprintf("Olá,\n\nRegistramos a %s de %s em %s.\n\nEsta é uma mensagem automática, não responda.",
		action, mail.Nome, mail.Occurred.Format("02/01/2006 às 15:04"))

	return n.mailer.Send(mail.To, subject, body)
}
