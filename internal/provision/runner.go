package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dropDatabas3/kcseed/internal/config"
	"github.com/dropDatabas3/kcseed/internal/keycloak"
	"github.com/dropDatabas3/kcseed/internal/metrics"
	"github.com/dropDatabas3/kcseed/internal/observability/logger"
	"github.com/dropDatabas3/kcseed/internal/report"
	"github.com/dropDatabas3/kcseed/internal/util"
)

// AdminAPI es lo que el provisioning usa del admin REST (*keycloak.Client).
type AdminAPI interface {
	GetRealm(ctx context.Context, realm string) (*keycloak.RealmRepresentation, error)
	CreateRealm(ctx context.Context, r keycloak.RealmRepresentation) error
	ListClients(ctx context.Context, realm string) ([]keycloak.ClientRepresentation, error)
	CreateClient(ctx context.Context, realm string, c keycloak.ClientRepresentation) error
	ListUsers(ctx context.Context, realm string, max int) ([]keycloak.UserRepresentation, error)
	DeleteUser(ctx context.Context, realm, id string) error
	CreateUser(ctx context.Context, realm string, u keycloak.UserRepresentation) (string, error)
}

// Authenticator entrega el token del admin (*keycloak.TokenSource).
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// Options arma un Runner. Config, API y Auth son obligatorios.
type Options struct {
	Config *config.Config
	API    AdminAPI
	Auth   Authenticator

	Metrics   metrics.Recorder
	Generator *Generator
	Sleeper   Sleeper
	Now       func() time.Time
	Intn      func(n int) int // elección de la pausa; [0, n)
	RunID     string
}

// Runner ejecuta los pasos del seeding con una config ya validada.
type Runner struct {
	cfg     *config.Config
	api     AdminAPI
	auth    Authenticator
	rec     metrics.Recorder
	gen     *Generator
	sleeper Sleeper
	now     func() time.Time
	intn    func(int) int
	limiter *rate.Limiter
	runID   string
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil || opts.API == nil || opts.Auth == nil {
		return nil, errors.New("provision: config, api and auth are required")
	}
	cfg := opts.Config
	if cfg.Seed.TotalUsers <= 0 || cfg.Seed.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: total users and batch size must be > 0 (got %d, %d)",
			config.ErrInvalidConfig, cfg.Seed.TotalUsers, cfg.Seed.BatchSize)
	}

	r := &Runner{
		cfg:     cfg,
		api:     opts.API,
		auth:    opts.Auth,
		rec:     opts.Metrics,
		gen:     opts.Generator,
		sleeper: opts.Sleeper,
		now:     opts.Now,
		intn:    opts.Intn,
		runID:   opts.RunID,
	}
	if r.rec == nil {
		r.rec = metrics.Nop{}
	}
	if r.gen == nil {
		r.gen = NewGenerator(cfg.Seed.FakerSeed, cfg.Seed.Password, cfg.Seed.EmailDomain)
	}
	if r.sleeper == nil {
		r.sleeper = timerSleeper{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.intn == nil {
		f := gofakeit.New(0)
		r.intn = func(n int) int { return f.Number(0, n-1) }
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if rps := cfg.Seed.RequestsPerSecond; rps > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r, nil
}

// RunID identifica la corrida en logs y resumen.
func (r *Runner) RunID() string { return r.runID }

// Run ejecuta realm → client → purge → seed. Ningún paso corta la corrida:
// cada uno reporta su resultado en RunResult.
func (r *Runner) Run(ctx context.Context) RunResult {
	res := RunResult{
		RunID:      r.runID,
		StartedAt:  r.now(),
		Server:     r.cfg.Keycloak.BaseURL,
		RealmName:  r.cfg.Realm.Name,
		ClientID:   r.cfg.Client.ID,
		TotalUsers: r.cfg.Seed.TotalUsers,
		BatchSize:  r.cfg.Seed.BatchSize,
	}
	ctx = logger.ToContext(ctx, logger.From(ctx).With(
		logger.RunID(r.runID),
		logger.Realm(r.cfg.Realm.Name),
	))

	res.Realm = r.EnsureRealm(ctx)
	res.Client = r.EnsureClient(ctx)
	res.Purge = r.PurgeUsers(ctx)
	res.Seed = r.SeedUsers(ctx)
	res.FinishedAt = r.now()
	return res
}

/* ============================================================================
   Realm
============================================================================ */

// EnsureRealm crea el realm si el GET no devuelve 200. Cualquier falla del
// GET se trata como "no existe".
func (r *Runner) EnsureRealm(ctx context.Context) StepResult {
	log := r.stepLogger(ctx, StepRealm)
	name := r.cfg.Realm.Name

	if err := r.authenticate(ctx, log); err != nil {
		return r.finish(StepRealm, StepAborted, err)
	}

	_, err := r.api.GetRealm(ctx, name)
	if err == nil {
		log.Info("realm already exists, skipping create")
		return r.finish(StepRealm, StepExists, nil)
	}
	if !keycloak.IsNotFound(err) {
		log.Warn("realm lookup failed, treating as absent", logger.Err(err))
	}

	rep := keycloak.RealmRepresentation{
		Realm:                  name,
		Enabled:                true,
		DisplayName:            r.cfg.Realm.DisplayName,
		RegistrationAllowed:    r.cfg.Realm.RegistrationAllowed,
		LoginWithEmailAllowed:  r.cfg.Realm.LoginWithEmailAllowed,
		DuplicateEmailsAllowed: r.cfg.Realm.DuplicateEmailsAllowed,
	}
	if err := r.api.CreateRealm(ctx, rep); err != nil {
		log.Error("create realm failed",
			logger.String("detail", keycloak.ErrorDetail(err)),
			logger.Err(err),
		)
		return r.finish(StepRealm, StepFailed, err)
	}
	log.Info("realm created")
	return r.finish(StepRealm, StepCreated, nil)
}

/* ============================================================================
   Client
============================================================================ */

// EnsureClient busca el clientId en la lista del realm y lo crea si no está.
// Si la lista falla, se intenta crear igual.
func (r *Runner) EnsureClient(ctx context.Context) StepResult {
	id := r.cfg.Client.ID
	log := r.stepLogger(ctx, StepClient).With(logger.ClientID(id))

	if err := r.authenticate(ctx, log); err != nil {
		return r.finish(StepClient, StepAborted, err)
	}

	clients, err := r.api.ListClients(ctx, r.cfg.Realm.Name)
	if err != nil {
		log.Warn("list clients failed, attempting create", logger.Err(err))
	} else if lo.ContainsBy(clients, func(c keycloak.ClientRepresentation) bool { return c.ClientID == id }) {
		log.Info("client already exists, skipping create")
		return r.finish(StepClient, StepExists, nil)
	}

	rep := keycloak.ClientRepresentation{
		ClientID:                     id,
		Enabled:                      true,
		PublicClient:                 false,
		Secret:                       r.cfg.Client.Secret,
		RedirectURIs:                 r.cfg.Client.RedirectURIs,
		WebOrigins:                   r.cfg.Client.WebOrigins,
		StandardFlowEnabled:          r.cfg.Client.StandardFlowEnabled,
		DirectAccessGrantsEnabled:    r.cfg.Client.DirectAccessGrantsEnabled,
		ServiceAccountsEnabled:       r.cfg.Client.ServiceAccountsEnabled,
		AuthorizationServicesEnabled: false,
	}
	if err := r.api.CreateClient(ctx, r.cfg.Realm.Name, rep); err != nil {
		log.Error("create client failed",
			logger.String("detail", keycloak.ErrorDetail(err)),
			logger.Err(err),
		)
		return r.finish(StepClient, StepFailed, err)
	}
	log.Info("client created")
	return r.finish(StepClient, StepCreated, nil)
}

/* ============================================================================
   Purge
============================================================================ */

// PurgeUsers lista los usuarios del realm (una sola llamada) y los borra uno
// por uno. Un borrado fallido se loguea y se cuenta; el loop sigue.
func (r *Runner) PurgeUsers(ctx context.Context) PurgeResult {
	log := r.stepLogger(ctx, StepPurge)
	var res PurgeResult

	if !r.cfg.Purge.Enabled {
		log.Info("purge disabled, keeping existing users")
		res.Step = r.finish(StepPurge, StepDisabled, nil)
		return res
	}
	if err := r.authenticate(ctx, log); err != nil {
		res.Step = r.finish(StepPurge, StepAborted, err)
		return res
	}

	users, err := r.api.ListUsers(ctx, r.cfg.Realm.Name, r.cfg.Purge.MaxUsers)
	if err != nil {
		log.Error("list users failed, nothing deleted", logger.Err(err))
		res.Step = r.finish(StepPurge, StepFailed, err)
		return res
	}
	res.Found = len(users)
	if len(users) == 0 {
		log.Info("no existing users to delete")
		res.Step = r.finish(StepPurge, StepDone, nil)
		return res
	}

	log.Info("deleting existing users", logger.Count(len(users)))
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			log.Warn("purge interrupted", logger.Int("deleted", res.Deleted), logger.Err(err))
			res.Step = r.finish(StepPurge, StepAborted, err)
			return res
		}
		ulog := log.With(logger.Username(u.Username), logger.UserID(u.ID))
		if err := r.api.DeleteUser(ctx, r.cfg.Realm.Name, u.ID); err != nil {
			res.Errors++
			r.rec.Delete(metrics.ResultFailed)
			ulog.Warn("delete user failed",
				logger.String("detail", keycloak.ErrorDetail(err)),
				logger.Err(err),
			)
			continue
		}
		res.Deleted++
		r.rec.Delete(metrics.ResultDeleted)
		ulog.Debug("user deleted", logger.String("email", util.MaskEmail(u.Email)))
	}

	log.Info("purge finished",
		logger.Int("deleted", res.Deleted),
		logger.Int("failed", res.Errors),
	)
	res.Step = r.finish(StepPurge, StepDone, nil)
	return res
}

/* ============================================================================
   Seed
============================================================================ */

// SeedUsers crea TotalUsers usuarios en batches de BatchSize. Cada intento
// deja una fila en el CSV (ya en disco) antes de la siguiente llamada. Entre
// batches, nunca después del último, duerme una pausa aleatoria.
func (r *Runner) SeedUsers(ctx context.Context) SeedResult {
	log := r.stepLogger(ctx, StepSeed)
	var res SeedResult

	batches := Batches(r.cfg.Seed.TotalUsers, r.cfg.Seed.BatchSize)
	if len(batches) == 0 {
		err := fmt.Errorf("%w: total users and batch size must be > 0", config.ErrInvalidConfig)
		res.Step = r.finish(StepSeed, StepAborted, err)
		return res
	}
	res.Batches = len(batches)

	if err := r.authenticate(ctx, log); err != nil {
		res.Step = r.finish(StepSeed, StepAborted, err)
		return res
	}

	w, err := report.Create(r.cfg.Report.Dir, r.now())
	if err != nil {
		log.Error("cannot create report file", logger.Err(err))
		res.Step = r.finish(StepSeed, StepFailed, err)
		return res
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Warn("closing report failed", logger.Err(err))
		}
	}()
	res.ReportPath = w.Path()

	log.Info("seeding users",
		logger.Int("total", r.cfg.Seed.TotalUsers),
		logger.Int("batch_size", r.cfg.Seed.BatchSize),
		logger.Int("batches", len(batches)),
		logger.String("report", w.Path()),
	)

	for bi, batch := range batches {
		blog := log.With(logger.Batch(bi + 1))
		blog.Info("processing batch",
			logger.Int("from", batch[0]),
			logger.Int("to", batch[len(batch)-1]),
		)

		payloadLogged := false
		for _, seq := range batch {
			if err := r.waitTurn(ctx); err != nil {
				blog.Warn("seeding interrupted", logger.Seq(seq), logger.Err(err))
				res.Step = r.finish(StepSeed, StepAborted, err)
				return res
			}

			u := r.gen.User(seq)
			ur := r.createUser(ctx, blog, u)
			if err := w.Write(ur.Row()); err != nil {
				blog.Error("writing report row failed", logger.Username(u.Username), logger.Err(err))
				res.Step = r.finish(StepSeed, StepFailed, err)
				return res
			}
			res.Processed++
			switch ur.Outcome {
			case OutcomeSuccess:
				res.Created++
			case OutcomeSkipped:
				res.Skipped++
			case OutcomeFailed:
				res.Failed++
				if !payloadLogged {
					blog.Debug("payload of first failed user in batch", zap.Any("payload", maskedPayload(u)))
					payloadLogged = true
				}
			}

			if ur.err != nil && keycloak.IsAuth(ur.err) {
				blog.Error("admin authentication lost, aborting seeding", logger.Err(ur.err))
				res.Step = r.finish(StepSeed, StepAborted, ur.err)
				return res
			}
		}

		if bi < len(batches)-1 {
			pause := pickPause(r.cfg.Seed.PauseMin, r.cfg.Seed.PauseMax, r.intn)
			blog.Info("pausing before next batch", logger.Duration(pause))
			if err := r.sleeper.Sleep(ctx, pause); err != nil {
				blog.Warn("pause interrupted", logger.Err(err))
				res.Step = r.finish(StepSeed, StepAborted, err)
				return res
			}
		}
	}

	log.Info("seeding finished",
		logger.Int("processed", res.Processed),
		logger.Int("created", res.Created),
		logger.Int("failed", res.Failed),
		logger.Int("skipped", res.Skipped),
	)
	res.Step = r.finish(StepSeed, StepDone, nil)
	return res
}

type userAttempt struct {
	UserResult
	err error
}

func (r *Runner) createUser(ctx context.Context, log *zap.Logger, u User) userAttempt {
	ulog := log.With(logger.Seq(u.Seq), logger.Username(u.Username))

	id, err := r.api.CreateUser(ctx, r.cfg.Realm.Name, u.Representation())
	if err == nil {
		r.rec.User(metrics.ResultCreated)
		ulog.Info("user created", logger.UserID(id))
		return userAttempt{UserResult: UserResult{User: u, ID: id, Outcome: OutcomeSuccess}}
	}

	detail := keycloak.ErrorDetail(err)
	if keycloak.IsConflict(err) && r.cfg.Seed.OnConflict == config.OnConflictSkip {
		r.rec.User(metrics.ResultSkipped)
		ulog.Warn("user already exists, skipped", logger.String("detail", detail))
		return userAttempt{UserResult: UserResult{User: u, Outcome: OutcomeSkipped, Reason: detail}, err: err}
	}

	r.rec.User(metrics.ResultFailed)
	ulog.Warn("create user failed", logger.String("detail", detail), logger.Err(err))
	return userAttempt{UserResult: UserResult{User: u, Outcome: OutcomeFailed, Reason: detail}, err: err}
}

// waitTurn respeta el rate limit (si hay) y la cancelación.
func (r *Runner) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter != nil {
		return r.limiter.Wait(ctx)
	}
	return nil
}

func maskedPayload(u User) keycloak.UserRepresentation {
	rep := u.Representation()
	for i := range rep.Credentials {
		rep.Credentials[i].Value = util.MaskSecret(rep.Credentials[i].Value)
	}
	return rep
}

/* ============================================================================
   utils
============================================================================ */

func (r *Runner) stepLogger(ctx context.Context, step string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("provision"),
		logger.Step(step),
	)
}

// authenticate pide el token antes de cada paso; si falla, el paso se aborta.
func (r *Runner) authenticate(ctx context.Context, log *zap.Logger) error {
	if _, err := r.auth.Token(ctx); err != nil {
		log.Error("admin authentication failed, skipping step", logger.Err(err))
		return err
	}
	return nil
}

func (r *Runner) finish(step string, st StepStatus, err error) StepResult {
	r.rec.Step(step, string(st))
	return StepResult{Name: step, Status: st, Err: err}
}
