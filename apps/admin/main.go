package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/user"
	"github.com/trezcool/selah/services/bibleapi"
	emailsvc "github.com/trezcool/selah/services/email"
	logsvc "github.com/trezcool/selah/services/logger"
	pushsvc "github.com/trezcool/selah/services/push"
	"github.com/trezcool/selah/storage/database"
	sqlxrepos "github.com/trezcool/selah/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	rl := logsvc.NewRollbarLogger(conf)
	logger := rl.Named("admin")

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(conf, usrRepo, emailsvc.NewConsoleService(conf, logger), logger)
	bibleSvc := bible.NewService(conf, bibleapi.NewClient(conf))
	gameSvc := gamification.NewService(sqlxrepos.NewGamificationRepository(db), database.NewTxRunner(db, logger), usrSvc, logger)

	// start CLI
	cli := &commandLine{
		db:        db.DB,
		usrRepo:   usrRepo,
		gameSvc:   gameSvc,
		scheduler: notification.NewScheduler(conf, sqlxrepos.NewNotificationRepository(db), pushsvc.NewWebPusher(conf), gameSvc, bibleSvc, usrSvc, logger),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	rl.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
