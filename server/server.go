package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"github.com/teniola/calldex/server/auth"
	"github.com/teniola/calldex/server/auth/key"
	"github.com/teniola/calldex/server/cron"
	"github.com/teniola/calldex/server/logger"
	"github.com/teniola/calldex/server/models"
	"github.com/teniola/calldex/shared"
)

const dbFileName = "calldex.db"

type RequestContextKey string

type DecodedAuthToken struct {
	Claims   *auth.CalldexTokenClaims
	ErrorMsg string
}

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

var (
	logg        = logger.NewLogger()
	validate    *validator.Validate
	authKeyPair *key.KeyPair
	devMode     bool
)

// Start boots the calldex API server & blocks until it's signalled to stop.
func Start(config *viper.Viper, isDevEnv bool) {
	devMode = isDevEnv

	serverConfig := shared.ServerConfig{}
	fatalOnError(config.Unmarshal(&serverConfig))

	validate = validator.New()
	fatalOnError(RegisterValidators(validate))
	fatalOnError(validate.Struct(serverConfig))

	var err error
	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Calldex.PrivateKeyPem)
	fatalOnError(err)

	dbFilePath := filepath.Join(configDirectory(devMode), dbFileName)

	scheduler, backupEnabled := setupSqliteBackups(&serverConfig, dbFilePath)

	fatalOnError(models.Initialize(dbFilePath, serverConfig.Sqlite.PassPhrase))
	models.AutoMigrate()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%v", serverConfig.Calldex.Listener.Port),
		Handler:      newRouter(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go serve(server)

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	<-sigChannel

	cleanup(scheduler, server, backupEnabled)
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(initialContextMiddleware)
	router.Use(loggingMiddleware)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/jwks.json", jwksHandler).Methods("GET")
	router.HandleFunc("/register/", registerHandler).Methods("POST")
	router.HandleFunc("/login/", logInHandler).Methods("POST")

	protected := router.NewRoute().Subrouter()
	protected.Use(protectedRouteMiddleware)
	protected.HandleFunc("/logout/", logOutHandler).Methods("DELETE")
	protected.HandleFunc("/profile/", getProfileHandler).Methods("GET")
	protected.HandleFunc("/profile/", updateProfileHandler).Methods("PUT")
	protected.HandleFunc("/contacts/create/", createContactHandler).Methods("POST")
	protected.HandleFunc("/contacts/", listContactsHandler).Methods("GET")
	protected.HandleFunc("/contacts/{id:[0-9]+}/delete/", deleteContactHandler).Methods("DELETE")
	protected.HandleFunc("/spam/create/", createSpamReportHandler).Methods("POST")
	protected.HandleFunc("/spam/", listSpamNumbersHandler).Methods("GET")
	protected.HandleFunc("/spam/{phone_number}/likelihood/", spamLikelihoodHandler).Methods("GET")
	protected.HandleFunc("/spam/{phone_number}/delete/", deleteSpamReportHandler).Methods("DELETE")
	protected.HandleFunc("/spam/{phone_number}/", spamNumberDetailHandler).Methods("GET")
	protected.HandleFunc("/search/name/", searchByNameHandler).Methods("GET")
	protected.HandleFunc("/search/phone/", searchByPhoneHandler).Methods("GET")
	protected.HandleFunc("/users/{id:[0-9]+}/", userDetailHandler).Methods("GET")
	protected.HandleFunc("/populate-test-data/", populateTestDataHandler).Methods("POST")

	return router
}

func setupSqliteBackups(serverConfig *shared.ServerConfig, dbFilePath string) (*gocron.Scheduler, bool) {
	enabled, _ := serverConfig.Google.Storage.EnableSqliteBackupAndSync.(bool)
	if !enabled {
		return nil, false
	}

	fatalOnError(initGStorageClient(serverConfig))

	// Pull down the last backup when starting with no local db
	restoreSqliteDbIfMissing(dbFilePath)

	scheduler := cron.NewScheduler(serverConfig.Calldex.Cron.TimeZone)
	_, err := scheduler.Cron(serverConfig.Google.Storage.SqliteBackupSchedule).
		Tag("sqlite-backup").
		Do(func() { backupSqliteDb(dbFilePath) })
	fatalOnError(err)

	scheduler.StartAsync()

	return scheduler, true
}
