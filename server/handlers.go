package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/teniola/calldex/server/auth"
	"github.com/teniola/calldex/server/auth/key"
	"github.com/teniola/calldex/server/models"
)

type RegistrationParams struct {
	Username    string `json:"username" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	Email       string `json:"email" validate:"omitempty,email"`
	Password    string `json:"password" validate:"required,password"`
	Password2   string `json:"password2" validate:"required,eqfield=Password"`
}

type LoginParams struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type ContactParams struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type SpamReportParams struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type SearchResult struct {
	Name           string  `json:"name"`
	PhoneNumber    string  `json:"phone_number"`
	SpamLikelihood float64 `json:"spam_likelihood"`
}

type SpamNumber struct {
	PhoneNumber string `json:"phone_number"`
}

// ---------------------------------------------------------------------------------//
// Account handlers
// --------------------------------------------------------------------------------//

func registerHandler(rw http.ResponseWriter, r *http.Request) {
	params := RegistrationParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	user := models.User{
		Username:    params.Username,
		PhoneNumber: params.PhoneNumber,
		Email:       params.Email,
		Password:    params.Password,
	}

	err = models.CreateUser(&user)
	if models.IsUniqueConstraintError(err) {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"username or phone number is already registered"}},
			http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	user.Password = ""
	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusCreated)
}

func logInHandler(rw http.ResponseWriter, r *http.Request) {
	params := LoginParams{}
	json.NewDecoder(r.Body).Decode(&params)

	passwordHash, err := models.FindUserPassword(params.PhoneNumber)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// same response whether the phone number is unknown or the
	// password is wrong
	if !auth.CheckPasswordHash(params.Password, passwordHash) {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"phone number/password is invalid"}},
			http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("phone_number", params.PhoneNumber)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := issueAuthToken(user)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"token": token}}, http.StatusOK)
}

func logOutHandler(rw http.ResponseWriter, r *http.Request) {
	decodedAuthToken := r.Context().Value(RequestContextKey("decodedAuthToken")).(DecodedAuthToken)

	// revoking an already revoked token is a no-op
	err := models.DeleteAccessToken(decodedAuthToken.Claims.Subject)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func getProfileHandler(rw http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: user})
}

func updateProfileHandler(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"username": true, "email": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if data["username"] != nil && strings.TrimSpace(fmt.Sprintf("%v", data["username"])) == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"username cannot be empty"}}, http.StatusBadRequest)
		return
	}

	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = user.Update(data)
	if models.IsUniqueConstraintError(err) {
		writeResponse(rw, ResponsePayload{Errors: []string{"username is already taken"}}, http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	user, err = models.FindUserBy("id", user.ID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: user})
}

// ---------------------------------------------------------------------------------//
// Contact handlers
// --------------------------------------------------------------------------------//

func createContactHandler(rw http.ResponseWriter, r *http.Request) {
	params := ContactParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	contact := models.Contact{Name: params.Name, PhoneNumber: params.PhoneNumber}
	err = user.AddContact(&contact)
	if models.IsUniqueConstraintError(err) {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"a contact with this phone number already exists"}},
			http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusCreated)
}

func listContactsHandler(rw http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if err := user.LoadContacts(); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: user.Contacts})
}

func deleteContactHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = user.DeleteContact(vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Spam report handlers
// --------------------------------------------------------------------------------//

func createSpamReportHandler(rw http.ResponseWriter, r *http.Request) {
	params := SpamReportParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	report, err := models.CreateSpamReport(user.ID, params.PhoneNumber)
	if models.IsUniqueConstraintError(err) {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"you have already reported this number"}},
			http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: report}, http.StatusCreated)
}

func deleteSpamReportHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = models.DeleteSpamReport(user.ID, vars["phone_number"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"you have not reported this number as spam"}},
			http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func spamNumberDetailHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	reportCount, err := models.SpamReportCount(vars["phone_number"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"phone_number": vars["phone_number"],
		"is_spam":      reportCount > 0,
		"report_count": reportCount,
	}})
}

func listSpamNumbersHandler(rw http.ResponseWriter, r *http.Request) {
	phoneNumbers, err := models.DistinctSpamNumbers()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	results := []SpamNumber{}
	for _, phoneNumber := range phoneNumbers {
		results = append(results, SpamNumber{PhoneNumber: phoneNumber})
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: results})
}

// spamLikelihoodHandler scores a number against the registered user
// count instead of the global report count
func spamLikelihoodHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	totalUsers, err := models.CountUsers()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if totalUsers == 0 {
		json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{
			"phone_number":    vars["phone_number"],
			"spam_likelihood": "0.00% (no users to report)",
		}})
		return
	}

	reportCount, err := models.SpamReportCount(vars["phone_number"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{
		"phone_number":    vars["phone_number"],
		"spam_likelihood": fmt.Sprintf("%.2f%%", float64(reportCount)/float64(totalUsers)*100),
	}})
}

// ---------------------------------------------------------------------------------//
// Search & directory handlers
// --------------------------------------------------------------------------------//

func searchByNameHandler(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	// registered users first(ordered by username), then contacts
	// from everyone's address books(ordered by name)
	results := []SearchResult{}
	if query != "" {
		users, err := models.SearchUsersByName(query)
		if err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}

		for _, user := range users {
			likelihood, err := models.SpamLikelihood(user.PhoneNumber)
			if err != nil {
				writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
				return
			}
			results = append(results, SearchResult{user.Username, user.PhoneNumber, likelihood})
		}

		contacts, err := models.SearchContactsByName(query)
		if err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}

		for _, contact := range contacts {
			likelihood, err := models.SpamLikelihood(contact.PhoneNumber)
			if err != nil {
				writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
				return
			}
			results = append(results, SearchResult{contact.Name, contact.PhoneNumber, likelihood})
		}
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: results})
}

func searchByPhoneHandler(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results := []SearchResult{}
	if query != "" {
		user, err := models.FindUserBy("phone_number", query)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}

		if user != nil {
			// the registered owner is the only result for their number
			likelihood, err := models.SpamLikelihood(user.PhoneNumber)
			if err != nil {
				writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
				return
			}
			results = append(results, SearchResult{user.Username, user.PhoneNumber, likelihood})
		} else {
			contacts, err := models.ContactsByPhone(query)
			if err != nil {
				writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
				return
			}

			for _, contact := range contacts {
				likelihood, err := models.SpamLikelihood(contact.PhoneNumber)
				if err != nil {
					writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
					return
				}
				results = append(results, SearchResult{contact.Name, contact.PhoneNumber, likelihood})
			}
		}
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: results})
}

func userDetailHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	target, err := models.FindUserBy("id", vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"user not found"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	likelihood, err := models.SpamLikelihood(target.PhoneNumber)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	requester, err := currentUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	hasContact, err := requester.HasContactWithNumber(target.PhoneNumber)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"id":              target.ID,
		"username":        target.Username,
		"phone_number":    target.PhoneNumber,
		"spam_likelihood": likelihood,
	}

	// email is only shown to callers who already have the target's
	// number in their own contact book
	if hasContact {
		data["email"] = target.Email
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: data})
}

// ---------------------------------------------------------------------------------//
// Misc handlers
// --------------------------------------------------------------------------------//

func healthCheckHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func jwksHandler(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

func populateTestDataHandler(rw http.ResponseWriter, r *http.Request) {
	if !devMode {
		writeResponse(rw,
			ResponsePayload{Errors: []string{"this endpoint is only available in dev mode"}},
			http.StatusForbidden)
		return
	}

	if err := populateSampleData(defaultSampleUsers, defaultContactsPerUser, defaultSampleReports); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data:    map[string]string{"message": "test data population complete"},
	})
}
