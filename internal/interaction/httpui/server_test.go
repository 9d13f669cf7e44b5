package httpui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"archtdea/internal/interaction"
	"archtdea/internal/model"
)

type nopViewer struct{}

func (nopViewer) View(c *model.Candidate) model.View {
	return model.StaticView{ObjectiveValues: c.Objectives}
}

type fakeProtocol struct {
	snap   interaction.Snapshot
	posted []interaction.Event
	err    error
}

func (f *fakeProtocol) Snapshot() interaction.Snapshot { return f.snap }

func (f *fakeProtocol) Post(e interaction.Event) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, e)
	return nil
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestStateReturnsSnapshot(t *testing.T) {
	fake := &fakeProtocol{snap: interaction.Snapshot{Seq: 9, State: interaction.ShowingCandidate, Generation: 3, Total: 4}}
	router := New(fake, nil, klog.Background()).Router()

	rec := serve(router, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "showing_candidate", got["state"])
	assert.Equal(t, 9.0, got["seq"])
	assert.Equal(t, 3.0, got["generation"])
}

func TestPostEventDecodesAndForwards(t *testing.T) {
	fake := &fakeProtocol{}
	router := New(fake, nil, klog.Background()).Router()

	rec := serve(router, http.MethodPost, "/events", `{"type":"set_field","field":"low","text":"0.2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fake.posted, 1)
	assert.Equal(t, interaction.SetField{Field: interaction.FieldLow, Text: "0.2"}, fake.posted[0])
}

func TestPostEventErrors(t *testing.T) {
	fake := &fakeProtocol{}
	router := New(fake, nil, klog.Background()).Router()

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/events", `{"type":"juggle"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/events", `{`).Code)

	fake.err = interaction.ErrNotInteracting
	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/events", `{"type":"ready"}`).Code)
	fake.err = interaction.ErrInboxFull
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodPost, "/events", `{"type":"ready"}`).Code)
	assert.Empty(t, fake.posted)
}

func TestMetricsRouteIsOptional(t *testing.T) {
	router := New(&fakeProtocol{}, nil, klog.Background()).Router()
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics", "").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("archtdea_generation 1\n"))
	})
	router = New(&fakeProtocol{}, metrics, klog.Background()).Router()
	rec := serve(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archtdea_generation")
}

func TestRealProtocolRejectsEventsWhileIdle(t *testing.T) {
	p, err := interaction.New(interaction.Config{Objectives: 2, Viewer: nopViewer{}})
	require.NoError(t, err)
	router := New(p, nil, klog.Background()).Router()

	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/events", `{"type":"ready"}`).Code)
	assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/events", `{"type":"stop"}`).Code)
	assert.True(t, p.Stopped())
}
