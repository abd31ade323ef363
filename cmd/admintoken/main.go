// Command admintoken arranca un despliegue nuevo: promueve el primer superusuario
// y emite admin tokens sin pasar por la API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/config"
	"github.com/funlifew/Push-Notification-Server/internal/db"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/push"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
	"github.com/funlifew/Push-Notification-Server/internal/service"
	"github.com/funlifew/Push-Notification-Server/internal/sms"
)

func main() {
	promote := flag.String("promote", "", "phone number of an existing account to grant superuser")
	count := flag.Int("count", 1, "number of admin tokens to generate")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if *promote != "" {
		normalizer, err := phone.NewNormalizer(cfg.PhoneRegion)
		if err != nil {
			log.Fatal(err)
		}
		otpSvc, err := service.NewOTPService(logger, repository.NewPgOTPRepository(pool), normalizer, sms.NewDisabledSender("cli"), nil, service.DefaultOTPPolicy())
		if err != nil {
			log.Fatal(err)
		}
		userSvc := service.NewUserService(logger, repository.NewPgUserRepository(pool), otpSvc, normalizer)
		user, err := userSvc.GrantSuperuser(ctx, *promote)
		if err != nil {
			log.Fatalf("promote %s: %v", *promote, err)
		}
		fmt.Printf("superuser granted: %s (%s)\n", user.PhoneNumber, user.ID)
		if *count <= 0 {
			return
		}
	}

	pushSvc := service.NewPushService(logger, repository.NewPgAdminTokenRepository(pool), push.NewDisabledDispatcher("cli"))
	for i := 0; i < *count; i++ {
		token, err := pushSvc.GenerateAdminToken(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate admin token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\t%s\n", token.Token, token.Name)
	}
}
