package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *MemoryStore) {
	t.Helper()
	dir, store := newTestDirectory(t)
	r := chi.NewRouter()
	r.Mount("/admin/accounts", NewHandler(dir, nil).Routes())
	return r, store
}

func TestHandler_CreateAndGetAccount(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"account":{"name":"Espaço Vida","whatsapp_number":"+55 31 97777-1111","timezone":"America/Sao_Paulo"},
		"owner":{"full_name":"Dr. Paulo"},"subscription":{"plan":"PRO","active":true,"ai_message_limit":100}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/accounts/", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "5531977771111", created.WhatsAppNumber)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PutFAQ(t *testing.T) {
	r, store := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/accounts/acc-1/faq/detalhes_pagamento",
		bytes.NewBufferString(`{"category":"Pagamentos","answer":"Aceitamos Pix e cartão."}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	item, err := store.FAQ(context.Background(), "acc-1", "detalhes_pagamento")
	require.NoError(t, err)
	assert.Equal(t, "Aceitamos Pix e cartão.", item.Answer)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/accounts/acc-1/faq/vazio", bytes.NewBufferString(`{"answer":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DocumentRequests(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()
	req := &DocumentRequest{AccountID: "acc-1", PatientID: "pat-1", Kind: RequestCertificate, Details: "atestado de ontem"}
	require.NoError(t, store.CreateDocumentRequest(ctx, req))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1/requests?status=pendente", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Requests []DocumentRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Requests, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/accounts/acc-1/requests/"+req.ID+"/complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	done, err := store.ListDocumentRequests(ctx, "acc-1", RequestCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.NotNil(t, done[0].CompletedAt)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/accounts/acc-1/requests/nope/complete", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1/requests?status=talvez", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostgresStore_SubscriptionMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM subscriptions").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "plan", "active", "ai_message_limit"}))

	sub, err := NewPostgresStore(mock).Subscription(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Nil(t, sub)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AccountByNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM accounts WHERE whatsapp_number").
		WithArgs("5511999990000").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "whatsapp_number", "owner", "timezone", "address", "phone", "staff_email", "created_at"}))

	_, err = NewPostgresStore(mock).AccountByNumber(context.Background(), "5511999990000")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
