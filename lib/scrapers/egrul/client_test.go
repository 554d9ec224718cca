package egrul

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"registry-backend/lib/registry"
	"registry-backend/lib/telemetry"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePortal serves the five endpoints the provider talks to: the index page
// issuing the session cookie, the query post, the result poll, and the
// excerpt request/download pair.
type fakePortal struct {
	cookieCalls  int
	requestCalls int
	lastQuery    string
	lastCookie   string

	rows         string
	requestToken string
	pdfType      string
	pdf          []byte
}

func newFakePortal(t *testing.T) (*fakePortal, *httptest.Server) {
	portal := &fakePortal{
		rows:         `{"rows": []}`,
		requestToken: `{"t": "DL-TOKEN"}`,
		pdfType:      "application/pdf",
		pdf:          []byte("%PDF-1.4 excerpt"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		portal.cookieCalls++
		w.Header().Set("Set-Cookie", "JSESSIONID=abc123; Path=/; HttpOnly")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		portal.lastQuery = string(body)
		portal.lastCookie = r.Header.Get("Cookie")
		fmt.Fprint(w, `{"t": "JOB-1"}`)
	})
	mux.HandleFunc("/search-result/", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/search-result/") != "JOB-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, portal.rows)
	})
	mux.HandleFunc("/vyp-request/", func(w http.ResponseWriter, r *http.Request) {
		portal.requestCalls++
		fmt.Fprint(w, portal.requestToken)
	})
	mux.HandleFunc("/vyp-download/", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/vyp-download/") != "DL-TOKEN" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", portal.pdfType)
		w.Write(portal.pdf)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return portal, server
}

func newTestClient(t *testing.T, server *httptest.Server, at time.Time) (*Client, *time.Time) {
	t.Cleanup(telemetry.SetupForTesting(t, "test:scrapers/egrul"))

	client, err := NewClient(ClientOptions{PortalURL: server.URL})
	require.NoError(t, err)

	now := at
	client.now = func() time.Time { return now }
	return client, &now
}

func TestSearchRemapsCompactKeys(t *testing.T) {
	portal, server := newFakePortal(t)
	portal.rows = `{"rows": [
		{"c": "ООО \"РОМАШКА\"", "n": "ОБЩЕСТВО С ОГРАНИЧЕННОЙ ОТВЕТСТВЕННОСТЬЮ \"РОМАШКА\"", "g": "Иванов Иван Иванович", "i": "7701234567", "o": "1027700132195", "rn": "Москва", "t": "UID-1"},
		{"c": "ООО \"ПИОН\"", "n": "ОБЩЕСТВО С ОГРАНИЧЕННОЙ ОТВЕТСТВЕННОСТЬЮ \"ПИОН\"", "g": "Петров Пётр Петрович", "i": "7812345678", "o": "1047800999999", "rn": "Санкт-Петербург", "t": "UID-2", "e": "14.05.2021"}
	]}`
	client, _ := newTestClient(t, server, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	matches, err := client.Search(context.Background(), "ромашка")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	require.Equal(t, "vyp3CaptchaToken=&page=&query="+
		"%D1%80%D0%BE%D0%BC%D0%B0%D1%88%D0%BA%D0%B0"+
		"&nameEq=on&region=&PreventChromeAutocomplete=", portal.lastQuery)
	require.Contains(t, portal.lastCookie, "JSESSIONID=abc123")
	require.Contains(t, portal.lastCookie, "uniI18nLang=RUS")

	active := matches[0]
	require.Equal(t, "UID-1", active.ID)
	require.Equal(t, `ООО "РОМАШКА"`, active.ShortName)
	require.Equal(t, "7701234567", active.TaxID)
	require.True(t, active.Active)
	require.Equal(t, "Иванов Иван Иванович", active.Details.Text(registry.KeyHeadOfOrg))
	require.Equal(t, "1027700132195", active.Details.Text(registry.KeyOGRN))
	require.Equal(t, "Москва", active.Details.Text(registry.KeyRegion))
	require.Equal(t, "Действующая на 01.06.2024", active.Details.Text(registry.KeyStatus))

	ceased := matches[1]
	require.False(t, ceased.Active)
	require.Equal(t, "Прекратила деятельность 14.05.2021", ceased.Details.Text(registry.KeyStatus))
	statusBool, ok := ceased.Details.Get(registry.KeyStatusActive)
	require.True(t, ok)
	require.False(t, statusBool.Bool)
}

func TestSessionCookieReusedUntilExpiry(t *testing.T) {
	portal, server := newFakePortal(t)
	client, now := newTestClient(t, server, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	_, err := client.Search(context.Background(), "первый запрос")
	require.NoError(t, err)
	_, err = client.Search(context.Background(), "второй запрос")
	require.NoError(t, err)
	require.Equal(t, 1, portal.cookieCalls)

	*now = now.Add(cookieTTL + time.Minute)
	_, err = client.Search(context.Background(), "третий запрос")
	require.NoError(t, err)
	require.Equal(t, 2, portal.cookieCalls)
}

func TestDownloadExcerptByID(t *testing.T) {
	portal, server := newFakePortal(t)
	client, _ := newTestClient(t, server, time.Now())

	pdf, err := client.DownloadExcerptByID(context.Background(), "UID-1")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 excerpt"), pdf)

	// the second download is served from the cache without a new token
	pdf, err = client.DownloadExcerptByID(context.Background(), "UID-1")
	require.NoError(t, err)
	require.NotNil(t, pdf)
	require.Equal(t, 1, portal.requestCalls)
}

func TestDownloadExcerptMissingTokenYieldsNothing(t *testing.T) {
	portal, server := newFakePortal(t)
	portal.requestToken = `{}`
	client, _ := newTestClient(t, server, time.Now())

	pdf, err := client.DownloadExcerptByID(context.Background(), "UID-1")
	require.NoError(t, err)
	require.Nil(t, pdf)
}

func TestDownloadExcerptRejectsNonPDF(t *testing.T) {
	portal, server := newFakePortal(t)
	portal.pdfType = "text/html; charset=utf-8"
	portal.pdf = []byte("<html>Сервис временно недоступен</html>")
	client, _ := newTestClient(t, server, time.Now())

	pdf, err := client.DownloadExcerptByID(context.Background(), "UID-1")
	require.NoError(t, err)
	require.Nil(t, pdf)
}

func TestDownloadExcerptByTaxIDRequiresUniqueMatch(t *testing.T) {
	portal, server := newFakePortal(t)
	portal.rows = `{"rows": [
		{"c": "ООО \"РОМАШКА\"", "i": "7701234567", "t": "UID-1"},
		{"c": "ФИЛИАЛ ООО \"РОМАШКА\"", "i": "7701234567", "t": "UID-2"}
	]}`
	client, _ := newTestClient(t, server, time.Now())

	pdf, err := client.DownloadExcerptByTaxID(context.Background(), "7701234567")
	require.NoError(t, err)
	require.Nil(t, pdf)
	require.Equal(t, 0, portal.requestCalls)
}

func TestDownloadExcerptByTaxIDSingleMatch(t *testing.T) {
	portal, server := newFakePortal(t)
	portal.rows = `{"rows": [{"c": "ООО \"РОМАШКА\"", "i": "7701234567", "t": "UID-1"}]}`
	client, _ := newTestClient(t, server, time.Now())

	pdf, err := client.DownloadExcerptByTaxID(context.Background(), "7701234567")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 excerpt"), pdf)
}

func TestUnsupportedOperations(t *testing.T) {
	_, server := newFakePortal(t)
	client, _ := newTestClient(t, server, time.Now())
	ctx := context.Background()

	_, err := client.FetchByID(ctx, "UID-1")
	require.ErrorIs(t, err, registry.ErrNotSupported)
	_, err = client.HQForTaxID(ctx, "7701234567")
	require.ErrorIs(t, err, registry.ErrNotSupported)
	_, err = client.LinkedPersons(ctx, "7701234567")
	require.ErrorIs(t, err, registry.ErrNotSupported)
	_, err = client.Branches(ctx, "7701234567")
	require.ErrorIs(t, err, registry.ErrNotSupported)
}
