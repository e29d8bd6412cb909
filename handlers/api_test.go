package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"arcane-atlas/persistence"
)

type recordedChange struct {
	worldID string
	name    string
	payload json.RawMessage
}

type recordingNotifier struct {
	changes []recordedChange
}

func (rn *recordingNotifier) DocumentChanged(worldID, name string, payload json.RawMessage) {
	rn.changes = append(rn.changes, recordedChange{worldID, name, payload})
}

func newTestAPI(t *testing.T) (*httptest.Server, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	api := NewAPI(persistence.NewMemoryStore(), notifier)
	mux := http.NewServeMux()
	api.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, notifier
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestDocumentLifecycleNotifiesRoom(t *testing.T) {
	srv, notifier := newTestAPI(t)

	res := doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"id":"w1","name":"Campaign"}`)
	assert.Equal(t, res.StatusCode, http.StatusOK)

	body := `{"id":"m1","worldId":"w1","level":0}`
	res = doRequest(t, http.MethodPut, srv.URL+"/api/world/w1/config/m1.json", body)
	assert.Equal(t, res.StatusCode, http.StatusOK)

	res = doRequest(t, http.MethodGet, srv.URL+"/api/world/w1/config/m1.json", "")
	assert.Equal(t, res.StatusCode, http.StatusOK)
	var m map[string]any
	json.NewDecoder(res.Body).Decode(&m)
	assert.Equal(t, m["id"], "m1")

	res = doRequest(t, http.MethodDelete, srv.URL+"/api/world/w1/config/m1.json", "")
	assert.Equal(t, res.StatusCode, http.StatusOK)

	res = doRequest(t, http.MethodGet, srv.URL+"/api/world/w1/config/m1.json", "")
	assert.Equal(t, res.StatusCode, http.StatusNotFound)

	// One notification per write/delete, nil payload for the delete.
	assert.Equal(t, len(notifier.changes), 2)
	assert.Equal(t, notifier.changes[0].name, "m1.json")
	assert.Equal(t, string(notifier.changes[0].payload), body)
	assert.Equal(t, notifier.changes[1].name, "m1.json")
	if notifier.changes[1].payload != nil {
		t.Fatal("delete notification should carry a nil payload")
	}
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	srv, notifier := newTestAPI(t)

	res := doRequest(t, http.MethodPut, srv.URL+"/api/world/w1/config/m1.json", `{"id":`)
	assert.Equal(t, res.StatusCode, http.StatusBadRequest)
	assert.Equal(t, len(notifier.changes), 0)
}

func TestCreateWorldRequiresID(t *testing.T) {
	srv, _ := newTestAPI(t)

	res := doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"name":"no id"}`)
	assert.Equal(t, res.StatusCode, http.StatusBadRequest)
}

func TestCreateExistingWorldKeepsMetadata(t *testing.T) {
	srv, _ := newTestAPI(t)

	doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"id":"w1","name":"First"}`)
	doRequest(t, http.MethodPut, srv.URL+"/api/world/w1/config/world.json", `{"id":"w1","name":"Renamed"}`)
	doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"id":"w1","name":"Second"}`)

	res := doRequest(t, http.MethodGet, srv.URL+"/api/world/w1/config/world.json", "")
	var w map[string]any
	json.NewDecoder(res.Body).Decode(&w)
	assert.Equal(t, w["name"], "Renamed")
}

func TestListWorlds(t *testing.T) {
	srv, _ := newTestAPI(t)

	doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"id":"w1"}`)
	doRequest(t, http.MethodPost, srv.URL+"/api/world", `{"id":"w2"}`)

	res := doRequest(t, http.MethodGet, srv.URL+"/api/list-worlds", "")
	var out struct {
		Worlds []string `json:"worlds"`
	}
	json.NewDecoder(res.Body).Decode(&out)
	assert.Equal(t, out.Worlds, []string{"w1", "w2"})
}
