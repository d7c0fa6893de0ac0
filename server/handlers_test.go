package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/teniola/calldex/server/auth/key"
	"github.com/teniola/calldex/server/models"
)

func setupTestServer(t *testing.T) *mux.Router {
	models.InitializeTestDb()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)
	authKeyPair = &key.KeyPair{
		Kid:        "test-key-id",
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}

	validate = validator.New()
	assert.Nil(t, RegisterValidators(validate))

	devMode = false

	return newRouter()
}

func doRequest(router *mux.Router, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	buff := new(bytes.Buffer)
	if body != nil {
		json.NewEncoder(buff).Encode(body)
	}

	request := httptest.NewRequest(method, target, buff)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	return recorder
}

func registerUser(t *testing.T, router *mux.Router, username, phoneNumber string) uint {
	recorder := doRequest(router, "POST", "/register/", "", map[string]string{
		"username":     username,
		"phone_number": phoneNumber,
		"email":        username + "@example.com",
		"password":     "sekret-pass",
		"password2":    "sekret-pass",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var response struct {
		Data models.User `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	return response.Data.ID
}

func logInUser(t *testing.T, router *mux.Router, phoneNumber string) string {
	recorder := doRequest(router, "POST", "/login/", "", map[string]string{
		"phone_number": phoneNumber,
		"password":     "sekret-pass",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Data.Token)

	return response.Data.Token
}

func TestRegisterValidation(t *testing.T) {
	router := setupTestServer(t)

	// mismatched passwords
	recorder := doRequest(router, "POST", "/register/", "", map[string]string{
		"username":     "anna",
		"phone_number": "+14165550101",
		"password":     "sekret-pass",
		"password2":    "different-pass",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// phone number must be e164
	recorder = doRequest(router, "POST", "/register/", "", map[string]string{
		"username":     "anna",
		"phone_number": "not-a-number",
		"password":     "sekret-pass",
		"password2":    "sekret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	registerUser(t, router, "anna", "+14165550101")

	// duplicate phone number is a validation error, not a 500
	recorder = doRequest(router, "POST", "/register/", "", map[string]string{
		"username":     "benga",
		"phone_number": "+14165550101",
		"password":     "sekret-pass",
		"password2":    "sekret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLogInAndTokenReuse(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")

	recorder := doRequest(router, "POST", "/login/", "", map[string]string{
		"phone_number": "+14165550101",
		"password":     "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// unknown number gets the same 401 as a bad password
	recorder = doRequest(router, "POST", "/login/", "", map[string]string{
		"phone_number": "+14165550999",
		"password":     "sekret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token := logInUser(t, router, "+14165550101")
	assert.Equal(t, token, logInUser(t, router, "+14165550101"), "login reuses the live token")
}

func TestLogOut(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	token := logInUser(t, router, "+14165550101")

	recorder := doRequest(router, "DELETE", "/logout/", token, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	// the revoked token no longer authenticates
	recorder = doRequest(router, "GET", "/profile/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// logging in again works & issues a fresh token
	newToken := logInUser(t, router, "+14165550101")
	assert.NotEqual(t, token, newToken)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := setupTestServer(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/profile/"},
		{"GET", "/contacts/"},
		{"POST", "/spam/create/"},
		{"GET", "/search/name/?q=anna"},
	} {
		recorder := doRequest(router, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, route.path)
	}
}

func TestProfile(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	token := logInUser(t, router, "+14165550101")

	recorder := doRequest(router, "GET", "/profile/", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"username":"anna"`)

	recorder = doRequest(router, "PUT", "/profile/", token, map[string]string{
		"username":     "anna.k",
		"phone_number": "+14165550999",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"username":"anna.k"`)
	assert.Contains(t, recorder.Body.String(), `"phone_number":"+14165550101"`, "phone number can't be changed")

	recorder = doRequest(router, "PUT", "/profile/", token, map[string]string{"unknown_field": "x"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestContactEndpoints(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	registerUser(t, router, "benga", "+14165550102")
	annaToken := logInUser(t, router, "+14165550101")
	bengaToken := logInUser(t, router, "+14165550102")

	recorder := doRequest(router, "POST", "/contacts/create/", annaToken, map[string]string{
		"name":         "Joe Plumber",
		"phone_number": "+14165550201",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var created struct {
		Data models.Contact `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	recorder = doRequest(router, "POST", "/contacts/create/", annaToken, map[string]string{
		"name":         "Joe Again",
		"phone_number": "+14165550201",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "duplicate number in the same book")

	recorder = doRequest(router, "GET", "/contacts/", annaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Joe Plumber")

	// benga's book is empty & he can't delete anna's contact
	recorder = doRequest(router, "GET", "/contacts/", bengaToken, nil)
	assert.NotContains(t, recorder.Body.String(), "Joe Plumber")

	deletePath := fmt.Sprintf("/contacts/%v/delete/", created.Data.ID)
	recorder = doRequest(router, "DELETE", deletePath, bengaToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doRequest(router, "DELETE", deletePath, annaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSpamEndpoints(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	registerUser(t, router, "benga", "+14165550102")
	annaToken := logInUser(t, router, "+14165550101")
	bengaToken := logInUser(t, router, "+14165550102")

	recorder := doRequest(router, "POST", "/spam/create/", annaToken, map[string]string{
		"phone_number": "+14165550900",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	recorder = doRequest(router, "POST", "/spam/create/", annaToken, map[string]string{
		"phone_number": "+14165550900",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "reporting the same number twice")

	recorder = doRequest(router, "GET", "/spam/+14165550900/", annaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"is_spam":true`)
	assert.Contains(t, recorder.Body.String(), `"report_count":1`)

	recorder = doRequest(router, "GET", "/spam/", bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "+14165550900")

	// 1 report over 2 registered users
	recorder = doRequest(router, "GET", "/spam/+14165550900/likelihood/", bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "50.00%")

	// benga never reported it, so his delete is a 404
	recorder = doRequest(router, "DELETE", "/spam/+14165550900/delete/", bengaToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doRequest(router, "DELETE", "/spam/+14165550900/delete/", annaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(router, "GET", "/spam/+14165550900/", annaToken, nil)
	assert.Contains(t, recorder.Body.String(), `"is_spam":false`)
	assert.Contains(t, recorder.Body.String(), `"report_count":0`)
}

func TestSearchByName(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "Anna", "+14165550101")
	registerUser(t, router, "benga", "+14165550102")
	bengaToken := logInUser(t, router, "+14165550102")

	// a contact under a free number shows up; one shadowing a
	// registered number does not
	doRequest(router, "POST", "/contacts/create/", bengaToken, map[string]string{
		"name": "Annie", "phone_number": "+14165550201",
	})
	doRequest(router, "POST", "/contacts/create/", bengaToken, map[string]string{
		"name": "Annabel", "phone_number": "+14165550101",
	})

	recorder := doRequest(router, "GET", "/search/name/?q=ann", bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Data []SearchResult `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2)
	assert.Equal(t, "Anna", response.Data[0].Name, "registered matches come first")
	assert.Equal(t, "Annie", response.Data[1].Name)

	// empty query is an empty result, not an error
	recorder = doRequest(router, "GET", "/search/name/", bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSearchByPhone(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	registerUser(t, router, "benga", "+14165550102")
	annaToken := logInUser(t, router, "+14165550101")
	bengaToken := logInUser(t, router, "+14165550102")

	// both users saved the same unregistered number under different names
	doRequest(router, "POST", "/contacts/create/", annaToken, map[string]string{
		"name": "Joe Plumber", "phone_number": "+14165550201",
	})
	doRequest(router, "POST", "/contacts/create/", bengaToken, map[string]string{
		"name": "Joey", "phone_number": "+14165550201",
	})

	recorder := doRequest(router, "GET", "/search/phone/?q=%2B14165550201", annaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Data []SearchResult `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2, "one row per saved nickname")

	// a registered number returns exactly the registered user
	recorder = doRequest(router, "GET", "/search/phone/?q=%2B14165550102", annaToken, nil)
	response.Data = nil
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Equal(t, "benga", response.Data[0].Name)
}

func TestUserDetailEmailGate(t *testing.T) {
	router := setupTestServer(t)
	annaID := registerUser(t, router, "anna", "+14165550101")
	registerUser(t, router, "benga", "+14165550102")
	bengaToken := logInUser(t, router, "+14165550102")

	detailPath := fmt.Sprintf("/users/%v/", annaID)

	// benga doesn't have anna's number saved, so no email
	recorder := doRequest(router, "GET", detailPath, bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "anna@example.com")

	doRequest(router, "POST", "/contacts/create/", bengaToken, map[string]string{
		"name": "Anna from work", "phone_number": "+14165550101",
	})

	recorder = doRequest(router, "GET", detailPath, bengaToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "anna@example.com")

	recorder = doRequest(router, "GET", "/users/9999/", bengaToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestPopulateTestDataOutsideDevMode(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "anna", "+14165550101")
	token := logInUser(t, router, "+14165550101")

	recorder := doRequest(router, "POST", "/populate-test-data/", token, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
