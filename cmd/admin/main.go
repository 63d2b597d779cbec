// Command admin runs maintenance tasks against the configured store:
//
//	admin -migrate
//	admin -promote ada@example.com -role admin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"easyrent/internal/app"
	"easyrent/internal/core/config"
	"easyrent/internal/core/logger"
	"easyrent/internal/domain"
	"easyrent/internal/notify"
	"easyrent/internal/service"
)

func main() {
	migrate := flag.Bool("migrate", false, "create tables / indexes")
	promote := flag.String("promote", "", "email of the user whose role changes")
	role := flag.String("role", string(domain.RoleAdmin), "role to set: user, admin or developer")
	flag.Parse()

	if !*migrate && *promote == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = stores.Close(context.Background()) }()

	if *migrate {
		if err := stores.Migrate(ctx); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
		log.Info("migrate done")
	}

	if *promote != "" {
		// 不发邮件，走日志投递即可
		mailer := notify.NewNotifier(notify.NewLogDispatcher(log), cfg.Mail.From, log)
		svc := service.NewUserService(stores.Users, app.NewJWTer(cfg), mailer, service.UserOptions{Logger: log})
		u, err := svc.SetRole(ctx, *promote, domain.Role(*role))
		if err != nil {
			log.Fatal("promote failed", zap.String("email", *promote), zap.Error(err))
		}
		log.Info("role updated", zap.String("email", u.Email), zap.String("role", string(u.Role)))
	}
}
