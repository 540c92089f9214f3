package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comanda/internal/config"
	"comanda/internal/handler"
	"comanda/internal/infra/db"
	"comanda/internal/infra/mercadopago"
	"comanda/internal/infra/realtime"
	infraRepo "comanda/internal/infra/repository"
	"comanda/internal/logger"
	"comanda/internal/middleware"
	"comanda/internal/server"
	"comanda/internal/usecase"
	"comanda/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func newJWTIssuer(secret string) *jwtIssuer {
	//分析画面は営業時間中ずっと開いているので長め
	return &jwtIssuer{
		secret:    []byte(secret),
		accessTTL: 12 * time.Hour,
	}
}

func (i *jwtIssuer) Issue(storeID string, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := middleware.AdminClaims{
		StoreID: storeID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envFile := pflag.String("env-file", ".env", "path to a .env file (optional)")
	migrateOnly := pflag.Bool("migrate", false, "run migrations and exit")
	addrFlag := pflag.String("addr", "", "listen address (overrides PORT)")
	pflag.Parse()

	//.envは無くても良い
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	newLog := func(component string) *slog.Logger {
		return logger.New(cfg.LogLevel, cfg.IsProd(), component)
	}
	log := newLog("api")

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB, cfg.RealtimeChannel, log); err != nil {
		return err
	}
	if *migrateOnly {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	tx := infraRepo.NewTxManagerGorm(gormDB)

	//共有パスワードは起動時にハッシュ化して平文は持たない
	adminHash, err := usecase.NewBcryptPasswordHasher(12).Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	cfg.AdminPassword = ""

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(tx, validator.NewCartValidator(), idGen, clock, newLog("orders"))
	kitchenUC := usecase.NewKitchenUsecase(orderUC, orderUC)
	menuUC := usecase.NewMenuUsecase(tx, validator.NewMenuValidator(), idGen, clock, newLog("menu"))
	storeUC := usecase.NewStoreUsecase(infraRepo.NewStoreGormRepository(gormDB), idGen, clock, newLog("stores"))
	analyticsUC := usecase.NewAnalyticsUsecase(tx, clock, cfg.Location, newLog("analytics"))
	auditUC := usecase.NewAuditUsecase(tx, newLog("audit"))
	authUC := usecase.NewAdminAuthUsecase(adminHash, usecase.NewBcryptPasswordVerifier(), newJWTIssuer(cfg.JWTSecret), clock)

	mp := mercadopago.NewClient(cfg.MercadoPagoAPIURL, cfg.MercadoPagoToken, 15*time.Second)
	paymentUC := usecase.NewPaymentUsecase(mp, orderUC, clock, newLog("payments"), usecase.DefaultPollInterval, usecase.DefaultPollAttempts)
	defer paymentUC.Close()

	//変更通知
	hub := realtime.NewHub(16, newLog("realtime"))
	listener := realtime.NewListener(cfg.DSN(), cfg.RealtimeChannel, hub, newLog("realtime"))
	go func() {
		if err := listener.Run(ctx); err != nil {
			log.Error("realtime listener stopped", "err", err)
		}
	}()

	//Handler生成
	e := server.New(cfg, newLog("http"))
	server.RegisterRoutes(e, server.Handlers{
		Stores:   handler.NewStoreHandler(storeUC),
		POS:      handler.NewPOSHandler(orderUC, menuUC, paymentUC),
		Kitchen:  handler.NewKitchenHandler(kitchenUC),
		Admin:    handler.NewAdminHandler(authUC, analyticsUC, menuUC, auditUC),
		Payments: handler.NewPaymentHandler(paymentUC),
		Realtime: handler.NewRealtimeHandler(hub, orderUC, kitchenUC, cfg.FEURL, newLog("realtime")),
	}, cfg.JWTSecret)

	//Server起動
	addr := ":" + cfg.Port
	if *addrFlag != "" {
		addr = *addrFlag
	}
	log.Info("listening", "addr", addr, "env", cfg.GoEnv)

	return server.Start(ctx, e, addr, 10*time.Second)
}
