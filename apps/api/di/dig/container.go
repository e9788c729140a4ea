package digcontainer

import (
	"context"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/selah/apps/api/echo"
	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/podcast"
	"github.com/trezcool/selah/core/prayer"
	"github.com/trezcool/selah/core/user"
	aisvc "github.com/trezcool/selah/services/ai"
	"github.com/trezcool/selah/services/bibleapi"
	emailsvc "github.com/trezcool/selah/services/email"
	logsvc "github.com/trezcool/selah/services/logger"
	paymentsvc "github.com/trezcool/selah/services/payment"
	pushsvc "github.com/trezcool/selah/services/push"
	"github.com/trezcool/selah/storage/database"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
	sqlxrepos "github.com/trezcool/selah/storage/database/sqlx"
)

const EngineMemory = "memory"

type (
	// Storage holds every repository along with the transaction runner of one storage engine.
	Storage struct {
		dig.Out

		Tx          core.TxRunner
		HealthCheck echoapi.HealthChecker
		Closer      DBCloser

		Users         user.Repository
		Annotations   annotation.Repository
		Plans         plan.Repository
		Prayers       prayer.Repository
		Groups        group.Repository
		Podcasts      podcast.Repository
		Lessons       lesson.Repository
		Gamification  gamification.Repository
		Donations     donation.Repository
		Notifications notification.Repository
	}

	// DBCloser releases the storage connections.
	DBCloser func() error

	ServerParams struct {
		dig.In

		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		HealthCheck echoapi.HealthChecker

		UserSvc         user.Service
		BibleSvc        bible.Service
		AnnotationSvc   annotation.Service
		PlanSvc         plan.Service
		PrayerSvc       prayer.Service
		GroupSvc        group.Service
		PodcastSvc      podcast.Service
		LessonSvc       lesson.Service
		GamificationSvc gamification.Service
		DonationSvc     donation.Service
		NotificationSvc notification.Service
	}

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	SchedulerParams struct {
		dig.In

		Conf     *core.Config
		Logger   core.Logger
		Repo     notification.Repository
		Pusher   notification.Pusher
		Activity gamification.Service
		Verses   bible.Service
		Users    user.Service
	}
)

func newRollbarLogger(conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(conf)
}

func newLogger(rl *logsvc.RollbarLogger) core.Logger {
	return rl.Named("api")
}

func newDBLogger(rl *logsvc.RollbarLogger) core.Logger {
	return rl.Named("db")
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	logger := loggerParam.Logger

	if conf.Database.Engine == EngineMemory {
		logger.Warn("using the in-memory storage: data is lost on restart")
		db := inmemdb.Open()
		return Storage{
			Tx:            db,
			Closer:        func() error { return nil },
			Users:         inmemdb.NewUserRepository(db),
			Annotations:   inmemdb.NewAnnotationRepository(db),
			Plans:         inmemdb.NewPlanRepository(db),
			Prayers:       inmemdb.NewPrayerRepository(db),
			Groups:        inmemdb.NewGroupRepository(db),
			Podcasts:      inmemdb.NewPodcastRepository(db),
			Lessons:       inmemdb.NewLessonRepository(db),
			Gamification:  inmemdb.NewGamificationRepository(db),
			Donations:     inmemdb.NewDonationRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return Storage{}, errors.Wrap(err, "setting up database")
	}
	return Storage{
		Tx: database.NewTxRunner(db, logger),
		HealthCheck: func(ctx context.Context) error {
			return database.StatusCheck(ctx, db)
		},
		Closer:        db.Close,
		Users:         sqlxrepos.NewUserRepository(db),
		Annotations:   sqlxrepos.NewAnnotationRepository(db),
		Plans:         sqlxrepos.NewPlanRepository(db),
		Prayers:       sqlxrepos.NewPrayerRepository(db),
		Groups:        sqlxrepos.NewGroupRepository(db),
		Podcasts:      sqlxrepos.NewPodcastRepository(db),
		Lessons:       sqlxrepos.NewLessonRepository(db),
		Gamification:  sqlxrepos.NewGamificationRepository(db),
		Donations:     sqlxrepos.NewDonationRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newAssistant keeps the interface nil when no API key is configured, so discussions use fallback questions.
func newAssistant(conf *core.Config, logger core.Logger) group.Assistant {
	if a := aisvc.NewAssistant(conf); a != nil {
		return a
	}
	logger.Info("no OpenAI API key: the discussion assistant is disabled")
	return nil
}

func newBibleService(conf *core.Config) bible.Service {
	return bible.NewService(conf, bibleapi.NewClient(conf))
}

func newGamificationService(repo gamification.Repository, tx core.TxRunner, usrSvc user.Service, logger core.Logger) gamification.Service {
	return gamification.NewService(repo, tx, usrSvc, logger)
}

func newPlanService(repo plan.Repository, gameSvc gamification.Service, logger core.Logger) plan.Service {
	return plan.NewService(repo, gameSvc, logger)
}

func newGroupService(
	repo group.Repository,
	tx core.TxRunner,
	assistant group.Assistant,
	bibleSvc bible.Service,
	gameSvc gamification.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) group.Service {
	return group.NewService(repo, tx, assistant, bibleSvc, gameSvc, mailSvc, logger)
}

func newPrayerService(repo prayer.Repository, groupSvc group.Service, gameSvc gamification.Service, logger core.Logger) prayer.Service {
	return prayer.NewService(repo, groupSvc, gameSvc, logger)
}

func newPodcastService(repo podcast.Repository, gameSvc gamification.Service, logger core.Logger) podcast.Service {
	return podcast.NewService(repo, gameSvc, logger)
}

func newLessonService(repo lesson.Repository, gameSvc gamification.Service, logger core.Logger) lesson.Service {
	return lesson.NewService(repo, gameSvc, logger)
}

func newDonationService(
	conf *core.Config,
	repo donation.Repository,
	tx core.TxRunner,
	mailSvc core.EmailService,
	logger core.Logger,
) donation.Service {
	return donation.NewService(conf, repo, tx, paymentsvc.NewStripeProvider(conf), mailSvc, logger)
}

func newPusher(conf *core.Config) notification.Pusher {
	return pushsvc.NewWebPusher(conf)
}

func newScheduler(p SchedulerParams) *notification.Scheduler {
	return notification.NewScheduler(p.Conf, p.Repo, p.Pusher, p.Activity, p.Verses, p.Users, p.Logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		HealthCheck: p.HealthCheck,

		UserSvc:         p.UserSvc,
		BibleSvc:        p.BibleSvc,
		AnnotationSvc:   p.AnnotationSvc,
		PlanSvc:         p.PlanSvc,
		PrayerSvc:       p.PrayerSvc,
		GroupSvc:        p.GroupSvc,
		PodcastSvc:      p.PodcastSvc,
		LessonSvc:       p.LessonSvc,
		GamificationSvc: p.GamificationSvc,
		DonationSvc:     p.DonationSvc,
		NotificationSvc: p.NotificationSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	must(c.Provide(newAssistant))
	must(c.Provide(newPusher))

	must(c.Provide(user.NewService))
	must(c.Provide(newBibleService))
	must(c.Provide(annotation.NewService))
	must(c.Provide(newGamificationService))
	must(c.Provide(newPlanService))
	must(c.Provide(newGroupService))
	must(c.Provide(newPrayerService))
	must(c.Provide(newPodcastService))
	must(c.Provide(newLessonService))
	must(c.Provide(newDonationService))
	must(c.Provide(notification.NewService))

	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
