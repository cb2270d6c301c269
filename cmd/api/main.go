package main

import (
	"log"
	"os"

	_ "cvrbackend/api/swagger" // swagger docs
	"cvrbackend/internal/database"
	"cvrbackend/internal/handler"
	"cvrbackend/internal/middleware"
	"cvrbackend/internal/repository"
	"cvrbackend/internal/service"
	"cvrbackend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// @title           CVR Backend API
// @version         1.0
// @description     Cost Value Reconciliation backend for construction jobs.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// CVR workbook locations
	ledgerConfig := service.LedgerConfig{
		LedgerPath:  envOr("CVR_LEDGER_PATH", "data/cvr_ledger.xlsx"),
		TemplateDir: envOr("CVR_TEMPLATE_DIR", "data/templates"),
		OutputDir:   envOr("CVR_OUTPUT_DIR", "data/processed"),
	}

	rules := service.DefaultUpdateRules()
	if rulesPath := os.Getenv("CVR_RULES_PATH"); rulesPath != "" {
		rules, err = service.LoadUpdateRules(rulesPath)
		if err != nil {
			log.Fatalf("Failed to load CVR update rules: %v", err)
		}
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	notifier := websocket.NewAlertNotifier(wsHub)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	variationRepo := repository.NewVariationRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	userService := service.NewUserService(userRepo)
	jobService := service.NewJobService(jobRepo)
	dashboardService := service.NewDashboardService(jobRepo, expenseRepo, invoiceRepo, variationRepo, budgetRepo)
	budgetService := service.NewBudgetService(budgetRepo, expenseRepo, invoiceRepo, jobRepo, alertRepo, service.DefaultThresholds(), notifier)
	expenseService := service.NewExpenseService(expenseRepo, jobRepo, budgetService)
	invoiceService := service.NewInvoiceService(invoiceRepo, jobRepo)
	variationService := service.NewVariationService(variationRepo, jobRepo, txManager)
	alertService := service.NewAlertService(alertRepo)
	cvrService := service.NewCVRService(ledgerConfig, rules, dashboardService, jobRepo, expenseRepo, variationRepo)

	provisioner := service.NewJobProvisioner(jobRepo, envOr("IMPORT_AUTO_CREATE_JOBS", "true") == "true")
	importService := service.NewImportService(
		service.NewPnLParser(service.NewKeywordClassifier()),
		service.NewInvoiceParser(),
		provisioner,
		rules.Matcher(),
		expenseRepo,
		invoiceRepo,
		budgetService,
		txManager,
	)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	jobHandler := handler.NewJobHandler(jobService, dashboardService)
	expenseHandler := handler.NewExpenseHandler(expenseService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	variationHandler := handler.NewVariationHandler(variationService)
	budgetHandler := handler.NewBudgetHandler(budgetService)
	alertHandler := handler.NewAlertHandler(alertService)
	uploadHandler := handler.NewUploadHandler(importService, cvrService, ledgerConfig.TemplateDir)
	cvrHandler := handler.NewCVRHandler(cvrService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	jobHandler.RegisterRoutes(router.Group(""))
	expenseHandler.RegisterRoutes(router.Group(""))
	invoiceHandler.RegisterRoutes(router.Group(""))
	variationHandler.RegisterRoutes(router.Group(""))
	budgetHandler.RegisterRoutes(router.Group(""))
	alertHandler.RegisterRoutes(router.Group(""))
	uploadHandler.RegisterRoutes(router.Group(""))
	cvrHandler.RegisterRoutes(router.Group(""))
	dashboardHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")
	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
