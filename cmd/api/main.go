package main

import (
	"context"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/jobs"
	"storefront/internal/metrics"
	"storefront/internal/provider/omise"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	//.envは無ければ環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Coupon{},
		&model.Payment{},
		&model.Order{},
		&model.OrderItem{},
		&model.Address{},
		&model.AuditLog{},
		&model.InventoryMovement{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	auditLogRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//外部部品
	provider := omise.NewClient(cfg.OmiseAPIBase, cfg.OmiseSecretKey)
	publisher := events.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()
	dedupe := cache.NewEventDedupe(cfg.RedisAddr, 0)
	defer dedupe.Close()
	m := metrics.NewCheckoutMetrics()

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(txManager, addressRepo, provider, publisher, cfg.RedirectURI)
	webhookUC := usecase.NewWebhookUsecase(txManager, dedupe, provider, publisher)
	paymentUC := usecase.NewPaymentUsecase(paymentRepo, orderRepo, provider)
	orderUC := usecase.NewOrderUsecase(txManager, orderRepo, orderItemRepo, productRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo)
	couponUC := usecase.NewCouponUsecase(txManager)
	auditLogUC := usecase.NewAuditLogUsecase(auditLogRepo)

	//期限切れ支払いの照合ジョブ
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := jobs.NewExpirySweeper(paymentRepo, provider, webhookUC, cfg.SweepInterval)
	go sweeper.Run(ctx)

	//Handler生成とルート登録
	e := server.New()
	handler.NewPaymentHandler(checkoutUC, paymentUC, m).RegisterRoutes(e, cfg)
	handler.NewWebhookHandler(webhookUC, m).RegisterRoutes(e)
	handler.NewOrderHandler(orderUC).RegisterRoutes(e, cfg)
	handler.NewAdminOrderHandler(orderUC).RegisterRoutes(e, cfg)
	handler.NewCartHandler(cartUC).RegisterRoutes(e, cfg)
	handler.NewAdminCouponHandler(couponUC).RegisterRoutes(e, cfg)
	handler.NewAdminAuditLogHandler(auditLogUC).RegisterRoutes(e, cfg)

	if err := e.Start(":" + cfg.Port); err != nil {
		panic(err)
	}
}
