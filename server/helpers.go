package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt"

	"github.com/teniola/calldex/server/auth"
	"github.com/teniola/calldex/server/models"
	"github.com/teniola/calldex/utils"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// if whitespace in password return false
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) > 0
	})
}

// currentUser loads the full user record for the request's verified token.
func currentUser(r *http.Request) (*models.User, error) {
	decodedAuthToken := r.Context().Value(RequestContextKey("decodedAuthToken")).(DecodedAuthToken)
	return models.FindUserBy("id", decodedAuthToken.Claims.Subject)
}

// ---------------------------------------------------------------------------------//
// Auth token Helper functions
// --------------------------------------------------------------------------------//

// issueAuthToken returns the user's live token if one exists,
// otherwise signs a fresh one & persists it.
func issueAuthToken(user *models.User) (string, error) {
	accessToken, err := models.FindAccessToken(user.ID)
	if err == nil {
		return accessToken.Token, nil
	}

	tokenID, err := randomTokenID()
	if err != nil {
		return "", err
	}

	tokenString, err := auth.EncodeJWT(auth.CalldexTokenClaims{
		Username: user.Username,
		StandardClaims: jwt.StandardClaims{
			Id:       tokenID,
			Subject:  fmt.Sprint(user.ID),
			IssuedAt: time.Now().Unix(),
		},
	}, authKeyPair)
	if err != nil {
		return "", err
	}

	err = models.CreateAccessToken(&models.AccessToken{Token: tokenString, UserID: user.ID})
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// randomTokenID gives each signed token a unique jti, so two logins
// for the same user never produce the same token string.
func randomTokenID() (string, error) {
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(idBytes), nil
}

func decodeAndVerifyAuthHeader(authHeaderValue string) DecodedAuthToken {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedAuthToken{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], authKeyPair)
	if err != nil {
		return DecodedAuthToken{ErrorMsg: "invalid token provided"}
	}

	// a signed token is only good while its session record is live,
	// i.e. not logged out
	accessToken, err := models.FindAccessToken(tokenClaims.Subject)
	if err != nil || accessToken.Token != authHeaderList[1] {
		return DecodedAuthToken{ErrorMsg: "invalid token provided"}
	}

	return DecodedAuthToken{Claims: tokenClaims}
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Calldex server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(scheduler *gocron.Scheduler, server *http.Server, backupDb bool) {
	if scheduler != nil {
		scheduler.Stop()
	}

	if backupDb {
		backupSqliteDb(filepath.Join(configDirectory(devMode), dbFileName))
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Calldex server shutdown failed:%+s", err)
	}

	logg.Infof("Calldex server stopped properly")
}

// configDirectory retrieves the directory for calldex data files
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'calldex' folder in home directory for prod
	configFolderName := "calldex"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
