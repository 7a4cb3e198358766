package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mapleleafu/cardarena/arena-backend/models"
)

type RunWriter interface {
	SaveRun(ctx context.Context, run models.Run) error
}

type SessionWriter interface {
	SaveSession(ctx context.Context, session models.GameSession) error
}

type archiveJob struct {
	action *models.GameAction
	run    *models.Run
}

// Archive records runs without blocking the session server. Events are queued
// and a single worker started with Run buffers each run's actions until the
// run ends, then writes the journal and the summary. Either writer may be nil.
type Archive struct {
	runs     RunWriter
	sessions SessionWriter
	log      *zap.Logger
	timeout  time.Duration

	queue   chan archiveJob
	pending map[string]*models.GameSession
}

func NewArchive(runs RunWriter, sessions SessionWriter, log *zap.Logger, queueSize int) *Archive {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Archive{
		runs:     runs,
		sessions: sessions,
		log:      log,
		timeout:  5 * time.Second,
		queue:    make(chan archiveJob, queueSize),
		pending:  make(map[string]*models.GameSession),
	}
}

func (a *Archive) RecordAction(action models.GameAction) {
	a.enqueue(archiveJob{action: &action})
}

func (a *Archive) SaveRun(run models.Run) {
	a.enqueue(archiveJob{run: &run})
}

func (a *Archive) enqueue(job archiveJob) {
	select {
	case a.queue <- job:
	default:
		a.log.Warn("archive queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// still queued and returns.
func (a *Archive) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case job := <-a.queue:
			a.handle(job)
		}
	}
}

func (a *Archive) drain() {
	for {
		select {
		case job := <-a.queue:
			a.handle(job)
		default:
			return
		}
	}
}

func (a *Archive) handle(job archiveJob) {
	switch {
	case job.action != nil:
		session, ok := a.pending[job.action.RunID]
		if !ok {
			session = &models.GameSession{RunID: job.action.RunID}
			a.pending[job.action.RunID] = session
		}
		session.Actions = append(session.Actions, *job.action)
	case job.run != nil:
		a.finish(*job.run)
	}
}

func (a *Archive) finish(run models.Run) {
	session, ok := a.pending[run.ID]
	if !ok {
		session = &models.GameSession{RunID: run.ID}
	}
	delete(a.pending, run.ID)

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if a.sessions != nil {
		if err := a.sessions.SaveSession(ctx, *session); err != nil {
			a.log.Error("failed to save run actions", zap.String("run", run.ID), zap.Error(err))
		}
	}
	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, run); err != nil {
			a.log.Error("failed to save run", zap.String("run", run.ID), zap.Error(err))
			return
		}
	}
	a.log.Info("run archived", zap.String("run", run.ID), zap.Int("actions", len(session.Actions)))
}
